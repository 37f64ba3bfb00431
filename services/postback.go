package services

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	retry "github.com/avast/retry-go/v4"
	"github.com/parkwatch/parking-backend/models"
	"github.com/parkwatch/parking-backend/shared"
	"github.com/sirupsen/logrus"
)

const (
	postbackMaxAttempts = 3
	postbackRetryDelay  = 500 * time.Millisecond
)

// PostbackExecutor replays ASP.NET postbacks against the portal. Each call
// is stateless aside from the shared session, so multiple postbacks may be
// in flight concurrently.
type PostbackExecutor struct {
	Session *shared.PortalSession
}

func NewPostbackExecutor(session *shared.PortalSession) *PostbackExecutor {
	return &PostbackExecutor{Session: session}
}

// ExecutePostback simulates the given UI action against the current page and
// returns the newly parsed page.
func (e *PostbackExecutor) ExecutePostback(ctx context.Context, doc *goquery.Document, eventTarget, eventArgument string) (*goquery.Document, error) {
	return e.SubmitFieldSet(ctx, BuildPostbackFields(doc, eventTarget, eventArgument))
}

// SubmitFieldSet posts an already-built field set to the portal. Transport
// failures are retried up to 3 attempts with a fixed short delay; the target
// failure mode is a slow server, so exponential growth buys nothing. A
// received non-2xx response is terminal immediately. The error surfaced
// after exhaustion is the last cause encountered.
func (e *PostbackExecutor) SubmitFieldSet(ctx context.Context, fields models.FormFieldSet) (*goquery.Document, error) {
	var page *goquery.Document

	err := retry.Do(
		func() error {
			doc, err := e.Session.PostForm(ctx, fields)
			if err != nil {
				if !shared.IsRetryableError(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			page = doc
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(postbackMaxAttempts),
		retry.Delay(postbackRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logrus.WithFields(logrus.Fields{
				"component":    "PostbackExecutor",
				"attempt":      attempt + 1,
				"max_attempts": postbackMaxAttempts,
				"event_target": fields[fieldEventTarget],
			}).WithError(err).Warn("Portal postback failed, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}
	return page, nil
}
