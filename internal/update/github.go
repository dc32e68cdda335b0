package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NowakAdmin/MonerisAgent/internal/version"
)

var (
	apiBase    = "https://api.github.com"
	httpClient = &http.Client{Timeout: 8 * time.Second}

	errNotFound = errors.New("not found")
)

type Result struct {
	HasUpdate bool
	Version   string
	URL       string
	Notes     string
}

// CheckGitHubRelease compares the running version with the latest release of
// repo, falling back to the newest tag when nothing is published.
func CheckGitHubRelease(ctx context.Context, repo string) (Result, error) {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return Result{}, fmt.Errorf("github repo must not be empty")
	}

	var release struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
		Body    string `json:"body"`
	}
	err := getJSON(ctx, fmt.Sprintf("%s/repos/%s/releases/latest", apiBase, repo), &release)
	if err == nil {
		return compare(release.TagName, release.HTMLURL, release.Body), nil
	}
	if !errors.Is(err, errNotFound) {
		return Result{}, err
	}

	var tags []struct {
		Name string `json:"name"`
	}
	if err = getJSON(ctx, fmt.Sprintf("%s/repos/%s/tags", apiBase, repo), &tags); err != nil {
		return Result{}, err
	}
	if len(tags) == 0 {
		return Result{}, fmt.Errorf("no versions published in %s", repo)
	}

	url := fmt.Sprintf("https://github.com/%s/releases/tag/%s", repo, tags[0].Name)
	return compare(tags[0].Name, url, ""), nil
}

func compare(tag, url, notes string) Result {
	latest := normalize(tag)

	return Result{
		HasUpdate: isNewerVersion(latest, normalize(version.Version)),
		Version:   latest,
		URL:       url,
		Notes:     notes,
	}
}

func getJSON(ctx context.Context, url string, into any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/vnd.github+json")

	response, err := httpClient.Do(request)
	if err != nil {
		return err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("github api returned status %d", response.StatusCode)
	}

	return json.NewDecoder(response.Body).Decode(into)
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	return v
}

func isNewerVersion(latest, current string) bool {
	if latest == "" || current == "" {
		return false
	}

	latestParts := parseVersion(latest)
	currentParts := parseVersion(current)

	for i := 0; i < 3; i++ {
		if latestParts[i] != currentParts[i] {
			return latestParts[i] > currentParts[i]
		}
	}

	return false
}

// parseVersion reads up to three numeric components; trailing non-digits
// in a component ("3-rc1") are ignored.
func parseVersion(v string) [3]int {
	parts := strings.Split(v, ".")
	result := [3]int{}

	for i := 0; i < len(parts) && i < 3; i++ {
		value := 0
		for _, ch := range parts[i] {
			if ch < '0' || ch > '9' {
				break
			}
			value = value*10 + int(ch-'0')
		}
		result[i] = value
	}

	return result
}
