package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/trivia-duel/models"
	"github.com/Dosada05/trivia-duel/storage"
)

// ResultArchiver stores a finalized result document and returns where it can be read.
type ResultArchiver interface {
	Archive(ctx context.Context, results *models.MatchResults) (string, error)
	Location(matchID int) string
}

type objectResultArchiver struct {
	store storage.ObjectStorage
}

func NewResultArchiver(store storage.ObjectStorage) ResultArchiver {
	if store == nil {
		return nopArchiver{}
	}
	return &objectResultArchiver{store: store}
}

func archiveKey(matchID int) string {
	return fmt.Sprintf("matches/%d/result.json", matchID)
}

func (a *objectResultArchiver) Archive(ctx context.Context, results *models.MatchResults) (string, error) {
	body, err := json.MarshalIndent(results, "", "\t")
	if err != nil {
		return "", fmt.Errorf("failed to encode results of match %d: %w", results.MatchID, err)
	}
	res, err := a.store.Put(ctx, archiveKey(results.MatchID), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return res.Location, nil
}

func (a *objectResultArchiver) Location(matchID int) string {
	return a.store.PublicURL(archiveKey(matchID))
}

type nopArchiver struct{}

func (nopArchiver) Archive(context.Context, *models.MatchResults) (string, error) { return "", nil }
func (nopArchiver) Location(int) string                                          { return "" }
