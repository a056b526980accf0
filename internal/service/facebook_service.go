package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	config "github.com/maheshrc27/postdispatch/configs"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/pkg/httpclient"
)

const facebookPostURL = "https://www.facebook.com/"

type graphID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
	} `json:"error"`
}

type facebookAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewFacebookAdapter(cfg config.Config, client *httpclient.Client) PlatformAdapter {
	if client == nil {
		client = httpclient.New()
	}
	return &facebookAdapter{
		client:  client,
		baseURL: strings.TrimRight(cfg.Facebook.GraphURL, "/") + "/" + cfg.Facebook.APIVersion,
	}
}

func (f *facebookAdapter) Platform() string { return models.PlatformFacebook }

func (f *facebookAdapter) PostToPage(ctx context.Context, pageID, accessToken string, content PostContent) (*PlatformPostResult, error) {
	if pageID == "" || accessToken == "" {
		return nil, permanent(ErrNoActivePageToken)
	}

	switch len(content.ImageURLs) {
	case 0:
		return f.postText(ctx, pageID, accessToken, content.Message)
	case 1:
		return f.postPhoto(ctx, pageID, accessToken, content.Message, content.ImageURLs[0])
	default:
		return f.postAlbum(ctx, pageID, accessToken, content.Message, content.ImageURLs)
	}
}

func (f *facebookAdapter) postText(ctx context.Context, pageID, token, message string) (*PlatformPostResult, error) {
	var out graphID
	err := f.client.PostForm(ctx, f.edge(pageID, "feed"), map[string]string{
		"message":      message,
		"access_token": token,
	}, &out)
	if err != nil {
		return nil, graphFailure("post to feed", err)
	}
	return &PlatformPostResult{PostID: out.ID, PostURL: facebookPostURL + out.ID}, nil
}

func (f *facebookAdapter) postPhoto(ctx context.Context, pageID, token, message, imageURL string) (*PlatformPostResult, error) {
	var out graphID
	err := f.client.PostForm(ctx, f.edge(pageID, "photos"), map[string]string{
		"url":          imageURL,
		"caption":      message,
		"access_token": token,
	}, &out)
	if err != nil {
		return nil, graphFailure("post photo", err)
	}

	urlID := out.PostID
	if urlID == "" {
		urlID = out.ID
	}
	return &PlatformPostResult{PostID: out.ID, PostURL: facebookPostURL + urlID}, nil
}

// postAlbum uploads every image unpublished, then attaches them to one
// feed post.
func (f *facebookAdapter) postAlbum(ctx context.Context, pageID, token, message string, imageURLs []string) (*PlatformPostResult, error) {
	form := map[string]string{
		"message":      message,
		"access_token": token,
	}
	for i, imageURL := range imageURLs {
		var photo graphID
		err := f.client.PostForm(ctx, f.edge(pageID, "photos"), map[string]string{
			"url":          imageURL,
			"published":    "false",
			"access_token": token,
		}, &photo)
		if err != nil {
			return nil, graphFailure("photo upload", err)
		}
		form[fmt.Sprintf("attached_media[%d][media_fbid]", i)] = photo.ID
	}

	var out graphID
	if err := f.client.PostForm(ctx, f.edge(pageID, "feed"), form, &out); err != nil {
		return nil, graphFailure("album creation", err)
	}
	return &PlatformPostResult{PostID: out.ID, PostURL: facebookPostURL + out.ID}, nil
}

func (f *facebookAdapter) edge(node, edge string) string {
	return f.baseURL + "/" + node + "/" + edge
}

// graphFailure turns a Graph API error body into a readable message.
// Token, permission and duplicate-content errors are permanent.
func graphFailure(op string, err error) error {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("facebook %s: %w", op, err)
	}

	var ge graphError
	if json.Unmarshal([]byte(se.Body), &ge) != nil || ge.Error.Code == 0 {
		return fmt.Errorf("facebook %s: %w", op, err)
	}

	e := ge.Error
	var msg string
	fatal := false
	switch e.Code {
	case 190:
		fatal = true
		switch e.Subcode {
		case 463:
			msg = "Facebook access token has expired"
		case 467:
			msg = "Facebook access token is invalid"
		default:
			msg = "Facebook access token issue"
		}
	case 104:
		fatal = true
		msg = "Facebook access token is required"
	case 200:
		fatal = true
		msg = "Insufficient permissions to post to this Facebook page"
	case 506:
		fatal = true
		msg = "This content has already been posted recently"
	case 613:
		msg = "Facebook posting rate limit exceeded"
	case 368:
		msg = "Facebook has temporarily blocked this action"
	case 341:
		msg = "Facebook posting limit reached"
	case 100:
		msg = "Facebook API parameter error: " + e.Message
	default:
		code := fmt.Sprint(e.Code)
		if e.Subcode != 0 {
			code += fmt.Sprintf("/%d", e.Subcode)
		}
		msg = fmt.Sprintf("Facebook API error (%s): %s", code, e.Message)
	}

	out := fmt.Errorf("facebook %s: %s", op, msg)
	if fatal {
		return permanent(out)
	}
	return out
}
