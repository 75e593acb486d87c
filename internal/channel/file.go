package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/driftloom/loomcore/pkg/models"
)

// File writes pending requests to a directory as one JSON file each,
// and polls for a sibling "<request_id>.response.json" file to appear.
// This lets an external, out-of-process approver (a script, a second
// terminal, a file-watching editor integration) decide without any
// direct IPC channel.
type File struct {
	Dir          string
	PollInterval time.Duration
}

// NewFile builds a File channel rooted at dir, creating it if absent.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("channel/file: create dir: %w", err)
	}
	return &File{Dir: dir, PollInterval: 500 * time.Millisecond}, nil
}

func (f *File) Name() string { return "file" }

func (f *File) Resolve(ctx context.Context, req models.PermissionRequest, display DisplayInfo) (models.ChannelResponse, error) {
	reqPath := filepath.Join(f.Dir, req.RequestID+".request.json")
	respPath := filepath.Join(f.Dir, req.RequestID+".response.json")

	payload, err := json.MarshalIndent(struct {
		Request models.PermissionRequest `json:"request"`
		Display DisplayInfo              `json:"display"`
	}{Request: req, Display: display}, "", "  ")
	if err != nil {
		return models.ChannelResponse{}, fmt.Errorf("channel/file: encode request: %w", err)
	}
	if err := os.WriteFile(reqPath, payload, 0o644); err != nil {
		return models.ChannelResponse{}, fmt.Errorf("channel/file: write request: %w", err)
	}
	defer os.Remove(reqPath)

	ticker := time.NewTicker(f.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.ChannelResponse{RequestID: req.RequestID, Decision: models.ChannelTimeout, Reason: "file channel cancelled"}, ctx.Err()
		case <-ticker.C:
			data, err := os.ReadFile(respPath)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return models.ChannelResponse{}, fmt.Errorf("channel/file: read response: %w", err)
			}
			var resp models.ChannelResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				return models.ChannelResponse{}, fmt.Errorf("channel/file: decode response: %w", err)
			}
			os.Remove(respPath)
			if resp.RequestID == "" {
				resp.RequestID = req.RequestID
			}
			return resp, nil
		}
	}
}
