package youtube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"

	"ytarchive/internal/transfer"
)

// statusResumeIncomplete is the response code for a partially received resumable upload.
const statusResumeIncomplete = 308

// resumableSession speaks the resumable upload protocol against one session URI.
type resumableSession struct {
	client *http.Client
	uri    string
}

func (s *resumableSession) Put(ctx context.Context, offset int64, chunk []byte, total int64) (transfer.Ack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.uri, bytes.NewReader(chunk))
	if err != nil {
		return transfer.Ack{}, fmt.Errorf("build chunk request: %w", err)
	}
	req.ContentLength = int64(len(chunk))
	if len(chunk) == 0 {
		req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
	} else {
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total))
	}
	return s.do(req)
}

func (s *resumableSession) Committed(ctx context.Context, total int64) (transfer.Ack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.uri, http.NoBody)
	if err != nil {
		return transfer.Ack{}, fmt.Errorf("build status request: %w", err)
	}
	req.ContentLength = 0
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
	return s.do(req)
}

func (s *resumableSession) do(req *http.Request) (transfer.Ack, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return transfer.Ack{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return transfer.Ack{}, fmt.Errorf("read upload response: %w", err)
		}
		return transfer.Ack{Done: true, Body: body}, nil
	case resp.StatusCode == statusResumeIncomplete:
		_, _ = io.Copy(io.Discard, resp.Body)
		committed, err := parseRangeHeader(resp.Header.Get("Range"))
		if err != nil {
			return transfer.Ack{}, err
		}
		return transfer.Ack{Committed: committed}, nil
	default:
		if err := googleapi.CheckResponse(resp); err != nil {
			return transfer.Ack{}, err
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return transfer.Ack{}, &transfer.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

// parseRangeHeader converts "bytes=0-N" into the committed byte count N+1. A missing
// header means nothing was persisted.
func parseRangeHeader(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	byteRange, ok := strings.CutPrefix(value, "bytes=")
	if !ok {
		return 0, fmt.Errorf("unexpected Range header %q", value)
	}
	_, last, ok := strings.Cut(byteRange, "-")
	if !ok {
		return 0, fmt.Errorf("unexpected Range header %q", value)
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected Range header %q: %w", value, err)
	}
	return end + 1, nil
}
