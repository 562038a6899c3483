package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"hrdesk/domain"
	"hrdesk/errors"

	"github.com/gabriel-vasile/mimetype"
)

// Upload is an optional document attached to a chat turn.
type Upload struct {
	Name    string
	Content io.Reader
}

// Ask posts one multipart chat turn: the query, the serialized history,
// and the optional file. The file's content type is sniffed from its
// bytes rather than trusted from the extension.
func (g *Gateway) Ask(ctx context.Context, cred domain.Credential, chatReq ChatRequest) (ChatAnswer, error) {
	if chatReq.Query == "" && chatReq.Upload == nil {
		return ChatAnswer{}, errors.ErrEmptyChatTurn
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("query", chatReq.Query); err != nil {
		return ChatAnswer{}, err
	}
	if chatReq.HistoryJSON != "" {
		if err := writer.WriteField("history", chatReq.HistoryJSON); err != nil {
			return ChatAnswer{}, err
		}
	}
	if chatReq.Upload != nil {
		if err := writeFilePart(writer, chatReq.Upload); err != nil {
			return ChatAnswer{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return ChatAnswer{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat", &body)
	if err != nil {
		return ChatAnswer{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	setBearer(req, cred)

	resp, err := g.http.Do(req)
	if err != nil {
		return ChatAnswer{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ChatAnswer{}, errors.ErrSessionExpired
	case resp.StatusCode >= 300:
		return ChatAnswer{}, fmt.Errorf("chat endpoint returned %d", resp.StatusCode)
	}

	var answer ChatAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return ChatAnswer{}, fmt.Errorf("decode chat response: %w", err)
	}
	return answer, nil
}

func writeFilePart(writer *multipart.Writer, upload *Upload) error {
	data, err := io.ReadAll(upload.Content)
	if err != nil {
		return fmt.Errorf("read upload %q: %w", upload.Name, err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Name))
	header.Set("Content-Type", mimetype.Detect(data).String())

	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
