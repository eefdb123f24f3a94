package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/uplinkd/git-uplink/id"
	"github.com/uplinkd/git-uplink/project"
	"github.com/uplinkd/git-uplink/syncer"
)

// SyncEvent is the trigger webhook payload sent by local tooling when a
// project's repository changed.
type SyncEvent struct {
	// ID of the project to sync.
	ProjectID string `json:"project_id"`
}

type SyncWebhookHandler struct {
	syncer *syncer.Syncer
	store  project.Store
	secret string
	log    *slog.Logger
}

func (wh *SyncWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		wh.log.Error("cannot read request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !wh.isValidSignature(body, r.Header.Get("X-Uplink-Signature-256")) {
		wh.log.Error("invalid signature")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event := r.Header.Get("X-Uplink-Event")

	// the ping event is a confirmation that the webhook is configured
	// correctly
	if event == "ping" {
		w.Write([]byte("pong"))
		return
	}

	var payload SyncEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		wh.log.Error("cannot unmarshal json payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// only process 'sync' event but return ok for all events to mark
	// successful delivery
	if event == "sync" {
		go wh.processSyncEvent(payload)
		return
	}
}

func (wh *SyncWebhookHandler) isValidSignature(message []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(wh.computeHMAC(message, wh.secret)))
}

func (wh *SyncWebhookHandler) computeHMAC(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))

	if _, err := mac.Write(message); err != nil {
		wh.log.Error("cannot compute hmac for request", "error", err)
		return ""
	}

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (wh *SyncWebhookHandler) processSyncEvent(event SyncEvent) {
	pid, err := id.Parse[project.Project](event.ProjectID)
	if err != nil {
		wh.log.Error("invalid project id in sync event", "id", event.ProjectID, "err", err)
		return
	}

	// events for unknown projects are expected when config and local
	// tooling are briefly out of step
	if _, err := wh.store.Get(pid); err != nil {
		if errors.Is(err, project.ErrNotExist) {
			return
		}
		wh.log.Error("unable to look up project for sync event", "project", pid, "err", err)
		return
	}

	if _, err := wh.syncer.Handle(context.Background(), pid); err != nil {
		wh.log.Error("unable to process sync event", "project", pid, "err", err)
	}
}
