package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/uhppoted/uhppoted-app-report/log"
)

// Retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("invalid tokens file %v (%w)", file, err)
	}

	return token, nil
}

// Saves a token to a file path, replacing the existing file atomically.
func saveToken(path string, token *oauth2.Token) error {
	log.Infof("saving credentials to %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return err
	}

	defer os.Remove(f.Name())

	if err := json.NewEncoder(f).Encode(token); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}
