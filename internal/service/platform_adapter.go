package service

import (
	"context"
	"strings"
)

//go:generate go run go.uber.org/mock/mockgen@v0.5.0 -destination=mocks_test.go -package=service . PlatformAdapter,CampaignTracker,WorkerNotifier

type PostContent struct {
	Message   string
	ImageURLs []string
}

type PlatformPostResult struct {
	PostID  string
	PostURL string
}

// PlatformAdapter publishes a rendered post to one social platform.
type PlatformAdapter interface {
	Platform() string
	PostToPage(ctx context.Context, pageID, accessToken string, content PostContent) (*PlatformPostResult, error)
}

type PlatformAdapters map[string]PlatformAdapter

func NewPlatformAdapters(adapters ...PlatformAdapter) PlatformAdapters {
	out := make(PlatformAdapters, len(adapters))
	for _, a := range adapters {
		out[a.Platform()] = a
	}
	return out
}

func (p PlatformAdapters) adapterFor(platform string) (PlatformAdapter, error) {
	a, ok := p[platform]
	if !ok {
		return nil, permanentf("%s: %w", platform, ErrPlatformNotImplemented)
	}
	return a, nil
}

func formatHashtags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// buildPostMessage appends the hashtags to the caption after a blank line.
func buildPostMessage(caption string, hashtags []string) string {
	tags := formatHashtags(hashtags)
	if tags == "" {
		return caption
	}
	return caption + "\n\n" + tags
}
