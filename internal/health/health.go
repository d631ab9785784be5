package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckRegistry fetches the registry URL and reports whether the service is
// reachable. Some hosts don't support HEAD; use GET and discard the body.
func CheckRegistry(ctx context.Context, registryURL string) error {
	if registryURL == "" {
		return fmt.Errorf("no registry URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("registry unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned HTTP %d", resp.StatusCode)
	}
	return nil
}
