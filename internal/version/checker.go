package version

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// UpdateAvailableMsg is sent when a new version is available.
type UpdateAvailableMsg struct {
	CurrentVersion string
	LatestVersion  string
	UpdateCommand  string
}

// CheckCached answers from the cache in cacheDir when it is fresh and
// otherwise asks GitHub, caching successful answers. ok is false when
// there is no update or the check failed.
func CheckCached(ctx context.Context, currentVersion, cacheDir string) (UpdateAvailableMsg, bool) {
	if IsDevelopmentVersion(currentVersion) {
		return UpdateAvailableMsg{}, false
	}
	if cached, err := LoadCache(cacheDir); err == nil && IsCacheValid(cached, currentVersion) {
		if cached.HasUpdate {
			return updateMsg(currentVersion, cached.LatestVersion), true
		}
		return UpdateAvailableMsg{}, false
	}

	result := Check(ctx, currentVersion)
	if result.Error != nil {
		return UpdateAvailableMsg{}, false
	}
	_ = SaveCache(cacheDir, &CacheEntry{
		LatestVersion:  result.LatestVersion,
		CurrentVersion: currentVersion,
		CheckedAt:      time.Now(),
		HasUpdate:      result.HasUpdate,
	})
	if result.HasUpdate {
		return updateMsg(currentVersion, result.LatestVersion), true
	}
	return UpdateAvailableMsg{}, false
}

// CheckAsync returns a Bubble Tea command that runs CheckCached in the
// background. It yields nil unless an update exists.
func CheckAsync(ctx context.Context, currentVersion, cacheDir string) tea.Cmd {
	return func() tea.Msg {
		if msg, ok := CheckCached(ctx, currentVersion, cacheDir); ok {
			return msg
		}
		return nil
	}
}

func updateMsg(current, latest string) UpdateAvailableMsg {
	return UpdateAvailableMsg{
		CurrentVersion: current,
		LatestVersion:  latest,
		UpdateCommand:  UpdateCommand(latest),
	}
}
