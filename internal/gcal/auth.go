package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
)

// newHTTPClient builds an authenticated client from a downloaded credentials
// file and a previously obtained token file. The server never runs an
// interactive consent flow; the token has to be provisioned beforehand.
func newHTTPClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %s: %w", credentialsFile, err)
	}

	cfg, err := google.ConfigFromJSON(raw, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file %s (provision it with an OAuth consent flow first): %w", tokenFile, err)
	}

	return cfg.Client(ctx, tok), nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}
