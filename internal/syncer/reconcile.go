package syncer

import (
	"context"
	"fmt"

	"github.com/starford/voxsync/internal/models"
)

// Lister is the paginated recordings feed of the remote service.
type Lister interface {
	Recordings(ctx context.Context, since string, deletedIDs []string) (*models.RecordingPage, error)
	RecordingsFromLink(ctx context.Context, link string) (*models.RecordingPage, error)
}

// FetchAll drains the recordings feed starting at the given watermark,
// following continuation links until the service reports no next page.
// The returned slice preserves server order across pages. A repeated
// continuation link means the remote is misbehaving and aborts the pass.
func FetchAll(ctx context.Context, remote Lister, since string, deletedIDs []string) ([]models.Recording, error) {
	page, err := remote.Recordings(ctx, since, deletedIDs)
	if err != nil {
		return nil, err
	}

	recordings := append([]models.Recording(nil), page.Data...)
	seen := map[string]struct{}{}
	for page.Links.Next != "" {
		if _, dup := seen[page.Links.Next]; dup {
			return nil, fmt.Errorf("syncer: pagination loop at %q", page.Links.Next)
		}
		seen[page.Links.Next] = struct{}{}

		page, err = remote.RecordingsFromLink(ctx, page.Links.Next)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, page.Data...)
	}
	return recordings, nil
}
