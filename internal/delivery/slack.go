package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackAdapter posts a report notice with the artifact attached to each
// recipient channel. The bot token comes from the delivery config blob.
type SlackAdapter struct {
	// newClient is swappable for tests.
	newClient func(token string) slackClient
}

type slackClient interface {
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

type slackConfig struct {
	Token   string `json:"token"`
	Comment string `json:"comment"`
}

func NewSlackAdapter() *SlackAdapter {
	return &SlackAdapter{
		newClient: func(token string) slackClient { return slack.New(token) },
	}
}

func (a *SlackAdapter) Send(ctx context.Context, methodConfig string, recipients []string, artifact Artifact, vars map[string]string) (Detail, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipient channels for slack delivery")
	}

	var sc slackConfig
	if methodConfig != "" {
		if err := json.Unmarshal([]byte(methodConfig), &sc); err != nil {
			return nil, fmt.Errorf("invalid slack delivery config: %v", err)
		}
	}
	if sc.Token == "" {
		return nil, fmt.Errorf("slack delivery config is missing token")
	}
	comment := sc.Comment
	if comment == "" {
		comment = fmt.Sprintf("Report %s (%s - %s)", artifact.ReportName, vars["start_datetime"], vars["end_datetime"])
	}

	client := a.newClient(sc.Token)
	files := make([]string, 0, len(recipients))
	for _, channel := range recipients {
		summary, err := client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Channel:        channel,
			File:           artifact.Path,
			Filename:       artifact.FileName,
			FileSize:       int(artifact.SizeBytes),
			InitialComment: comment,
		})
		if err != nil {
			return nil, fmt.Errorf("slack upload to %s: %v", channel, err)
		}
		files = append(files, summary.ID)
	}

	return Detail{
		"channels": recipients,
		"file_ids": files,
	}, nil
}
