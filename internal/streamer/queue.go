package streamer

import (
	"context"
	"net/url"
	"strconv"

	"github.com/vibin-audio/vibin-go/internal/apperrors"
	"github.com/vibin-audio/vibin-go/internal/model"
)

// ModifyQueueOptions carries the optional parameters of a queue mutation.
// PlayFromID is required for PLAY_FROM_HERE; InsertIndex is accepted as an
// alternative spelling and treated the same way.
type ModifyQueueOptions struct {
	PlayFromID  string
	InsertIndex *int
}

// ModifyQueue enqueues one media item. The item is identified to the
// streamer by its DIDL-Lite metadata, percent-encoded into the request.
func (s *Service) ModifyQueue(ctx context.Context, mediaID string, action model.QueueAction, opts ModifyQueueOptions) error {
	if s.media == nil {
		return apperrors.NewNotFoundError("queue modification requires a media server", nil)
	}

	didl, err := s.media.DIDL(ctx, mediaID)
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("metadata", didl)
	query.Set("action", string(action))

	switch {
	case action == model.QueueActionPlayFromHere && opts.PlayFromID != "":
		query.Set("play_from_id", opts.PlayFromID)
	case action == model.QueueActionPlayFromHere:
		return apperrors.NewInputError("PLAY_FROM_HERE requires play_from_id", nil)
	case opts.InsertIndex != nil:
		query.Set("insert_index", strconv.Itoa(*opts.InsertIndex))
	}

	return s.smoipGet(ctx, "queue/add", query, nil)
}

// ClearQueue discards the streamer's active queue.
func (s *Service) ClearQueue(ctx context.Context) error {
	query := url.Values{}
	query.Set("all", "1")
	return s.smoipGet(ctx, "queue/delete", query, nil)
}

// DeleteQueueItem removes one queue item by its streamer id.
func (s *Service) DeleteQueueItem(ctx context.Context, itemID int) error {
	query := url.Values{}
	query.Set("id", strconv.Itoa(itemID))
	return s.smoipGet(ctx, "queue/delete", query, nil)
}

// MoveQueueItem reorders one queue item.
func (s *Service) MoveQueueItem(ctx context.Context, itemID, fromPosition, toPosition int) error {
	queue := s.Queue()
	if fromPosition < 0 || fromPosition >= len(queue.Items) || toPosition < 0 || toPosition >= len(queue.Items) {
		return apperrors.NewInputError("move positions must be within the queue", map[string]any{
			"from_position": fromPosition,
			"to_position":   toPosition,
			"queue_length":  len(queue.Items),
		})
	}

	query := url.Values{}
	query.Set("id", strconv.Itoa(itemID))
	query.Set("from", strconv.Itoa(fromPosition))
	query.Set("to", strconv.Itoa(toPosition))
	return s.smoipGet(ctx, "queue/move", query, nil)
}
