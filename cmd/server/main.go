// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/jason-s-yu/clique/internal/apitest"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// server runs the in-memory API locally so the CLI can be pointed at it with
// CLIQUE_BASE_URL=http://localhost:8080. State is lost on exit.
func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	srv, handler := apitest.NewHandler(logger)

	// demo accounts
	alice := srv.AddAccount("alice", "password", "Alice", "Liddell")
	bob := srv.AddAccount("bob", "password", "Bob", "Builder")
	carol := srv.AddAccount("carol", "password", "Carol", "Danvers")
	srv.AddAccount("dave", "password", "Dave", "Grohl")
	srv.MakeFriends(alice, bob)
	srv.RequestFriendship(carol, alice)
	srv.SetStatus(bob, "🔨", "Building things")
	srv.SetStatus(carol, "✈️", "Flying")

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
