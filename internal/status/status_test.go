package status

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

func TestCollect(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "kioku.db")
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()
	if _, err := store.CreateCollection(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.AddMessage(ctx, &models.MessageInput{Message: "hi", Sender: "user"}); err != nil {
		t.Fatal(err)
	}

	st, err := Collect(ctx, store, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if st.Storage != "sqlite" || st.CollectionCount != 1 || st.Collections[0] != "alpha" {
		t.Errorf("status = %+v", st)
	}
	if st.Conversations != 1 {
		t.Errorf("conversations = %d", st.Conversations)
	}
	if st.DiskUsageBytes == nil || *st.DiskUsageBytes <= 0 {
		t.Errorf("disk usage = %v", st.DiskUsageBytes)
	}
	if st.Config.EmbeddingDimensions != 4 || st.Config.ChunkSize != 800 {
		t.Errorf("config = %+v", st.Config)
	}
}

func TestCollect_closedStore(t *testing.T) {
	cfg := config.Default()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "kioku.db"), 4)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()
	if _, err := Collect(context.Background(), store, cfg); err == nil {
		t.Error("expected an error from a closed store")
	}
}
