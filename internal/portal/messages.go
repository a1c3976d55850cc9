package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nhle/managemyhealth/internal/model"
)

// GetMessages returns the most recent received message. The portal
// returns newest first; records without a received timestamp are skipped.
// A nil message with a nil error means the inbox is empty.
func (c *Client) GetMessages(ctx context.Context) (*model.Message, error) {
	const op = "get messages"

	var records []json.RawMessage
	err := c.post(
		ctx, op, pathMessages,
		newPagedRequest(
			"UserId", "",
			"strindx", pageStart,
			"EndIndx", pageEnd,
		),
		&records,
	)
	if err != nil {
		return nil, err
	}

	for i, raw := range records {
		var rec messageRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, genericError(op, fmt.Errorf("decoding message %d: %w", i, err))
		}

		if strings.TrimSpace(rec.MessageReceivedOn) == "" {
			continue
		}

		msg, err := rec.toMessage(raw)
		if err != nil {
			return nil, genericError(op, err)
		}
		return msg, nil
	}

	log.Printf("fetched messages successfully, but did not find any")
	return nil, nil
}
