package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/apollo/internal/store"
)

func apolloDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".apollo")
}

func getStore() store.Storage {
	dir := apolloDir()
	storeLayer, err := store.NewSQLiteStore(
		filepath.Join(dir, "metadata.db"),
		filepath.Join(dir, "artifacts"),
	)
	if err != nil {
		fmt.Printf("Failed to init store: %v\n", err)
		os.Exit(1)
	}
	return storeLayer
}
