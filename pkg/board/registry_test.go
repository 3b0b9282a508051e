package board

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/small-frappuccino/activityboard/pkg/rank"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaderboard_ids.json")
	r := NewRegistry(path)
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r, path
}

func TestRegistryPutGet(t *testing.T) {
	r, _ := newTestRegistry(t)

	arts := GuildArtifacts{
		Messages: Artifact{ChannelID: "c1", MessageID: "m1"},
		Voice:    Artifact{ChannelID: "c2", MessageID: "m2"},
	}
	if err := r.Put("g1", arts); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := r.Get("g1")
	if !ok {
		t.Fatal("expected guild g1 to be registered")
	}
	if got != arts {
		t.Fatalf("got %+v, want %+v", got, arts)
	}
	if _, ok := r.Get("g2"); ok {
		t.Fatal("unexpected artifacts for unregistered guild")
	}
}

func TestRegistrySurvivesReload(t *testing.T) {
	r, path := newTestRegistry(t)

	arts := GuildArtifacts{
		Messages: Artifact{ChannelID: "c1", MessageID: "m1"},
		Voice:    Artifact{ChannelID: "c2", MessageID: "m2"},
	}
	if err := r.Put("g1", arts); err != nil {
		t.Fatalf("Put: %v", err)
	}

	fresh := NewRegistry(path)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load after restart: %v", err)
	}
	got, ok := fresh.Get("g1")
	if !ok || got != arts {
		t.Fatalf("after reload got %+v (ok=%v), want %+v", got, ok, arts)
	}
}

func TestRegistryUpdateMessageID(t *testing.T) {
	r, _ := newTestRegistry(t)

	if err := r.UpdateMessageID("missing", rank.MetricMessages, "m9"); err == nil {
		t.Fatal("expected error updating unregistered guild")
	}

	arts := GuildArtifacts{
		Messages: Artifact{ChannelID: "c1", MessageID: "m1"},
		Voice:    Artifact{ChannelID: "c2", MessageID: "m2"},
	}
	if err := r.Put("g1", arts); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := r.UpdateMessageID("g1", rank.MetricVoice, "m2b"); err != nil {
		t.Fatalf("UpdateMessageID: %v", err)
	}

	got, _ := r.Get("g1")
	if got.Voice.MessageID != "m2b" {
		t.Fatalf("voice message id = %q, want m2b", got.Voice.MessageID)
	}
	if got.Messages.MessageID != "m1" {
		t.Fatalf("chat message id changed to %q", got.Messages.MessageID)
	}
}

func TestRegistryDelete(t *testing.T) {
	r, _ := newTestRegistry(t)

	arts := GuildArtifacts{Messages: Artifact{ChannelID: "c1", MessageID: "m1"}}
	if err := r.Put("g1", arts); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := r.Delete("g1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := r.Get("g1"); ok {
		t.Fatal("guild still present after delete")
	}
	if err := r.Delete("g1"); err != nil {
		t.Fatalf("Delete of absent guild: %v", err)
	}
}

func TestRegistryUpdateAfterDeleteDoesNotResurrect(t *testing.T) {
	r, _ := newTestRegistry(t)

	arts := GuildArtifacts{
		Messages: Artifact{ChannelID: "c1", MessageID: "m1"},
		Voice:    Artifact{ChannelID: "c2", MessageID: "m2"},
	}
	if err := r.Put("g1", arts); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := r.Delete("g1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := r.UpdateMessageID("g1", rank.MetricMessages, "m1b"); err == nil {
		t.Fatal("expected error updating a deleted guild")
	}
	if _, ok := r.Get("g1"); ok {
		t.Fatal("update recreated the deleted guild entry")
	}
}

func TestRegistryMalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard_ids.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	r := NewRegistry(path)
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ids := r.GuildIDs(); len(ids) != 0 {
		t.Fatalf("expected empty registry, got %v", ids)
	}

	// Writes must still work after recovering from the bad file.
	if err := r.Put("g1", GuildArtifacts{Messages: Artifact{ChannelID: "c", MessageID: "m"}}); err != nil {
		t.Fatalf("Put after recovery: %v", err)
	}
}
