package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storybot-server/internal/interfaces"

	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.Messenger = (*HTTPGatewayClient)(nil)

// HTTPGatewayClient реализует Messenger поверх HTTP API Discord-шлюза.
// Шлюз скрывает rate limit'ы, ретраи и права бота; движок оперирует только
// идентификаторами каналов и пользователей.
type HTTPGatewayClient struct {
	baseURL           string // базовый URL шлюза (например, "http://discord-gateway:8090")
	httpClient        *http.Client
	logger            *zap.Logger
	interServiceToken string
}

// NewHTTPGatewayClient creates a new HTTP client for the messenger gateway.
func NewHTTPGatewayClient(baseURL string, interServiceToken string, logger *zap.Logger) *HTTPGatewayClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &HTTPGatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPGatewayClient"),
	}
}

func (c *HTTPGatewayClient) CreateChannel(ctx context.Context, guildID, name string) (string, error) {
	requestBody := struct {
		GuildID string `json:"guild_id"`
		Name    string `json:"name"`
	}{GuildID: guildID, Name: name}

	var responsePayload struct {
		ChannelID string `json:"channel_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/internal/channels", requestBody, &responsePayload); err != nil {
		return "", fmt.Errorf("gateway: ошибка создания канала: %w", err)
	}
	if responsePayload.ChannelID == "" {
		return "", fmt.Errorf("gateway: пустой channel_id в ответе")
	}
	return responsePayload.ChannelID, nil
}

func (c *HTTPGatewayClient) CreateThread(ctx context.Context, channelID, title string, private bool, writerUserID string) (string, error) {
	requestBody := struct {
		ChannelID    string `json:"channel_id"`
		Title        string `json:"title"`
		Private      bool   `json:"private"`
		WriterUserID string `json:"writer_user_id"`
	}{ChannelID: channelID, Title: title, Private: private, WriterUserID: writerUserID}

	var responsePayload struct {
		ThreadID string `json:"thread_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/internal/threads", requestBody, &responsePayload); err != nil {
		return "", fmt.Errorf("gateway: ошибка создания треда: %w", err)
	}
	if responsePayload.ThreadID == "" {
		return "", fmt.Errorf("gateway: пустой thread_id в ответе")
	}
	return responsePayload.ThreadID, nil
}

func (c *HTTPGatewayClient) PostMessage(ctx context.Context, channelID, text string) error {
	requestBody := struct {
		ChannelID string `json:"channel_id"`
		Text      string `json:"text"`
	}{ChannelID: channelID, Text: text}

	if err := c.doJSON(ctx, http.MethodPost, "/internal/messages", requestBody, nil); err != nil {
		return fmt.Errorf("gateway: ошибка отправки сообщения в канал %s: %w", channelID, err)
	}
	return nil
}

func (c *HTTPGatewayClient) SendDirectMessage(ctx context.Context, userID, text string) error {
	requestBody := struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}{UserID: userID, Text: text}

	// 403 от шлюза (закрытые DM) возвращается вызывающему коду как обычная
	// ошибка: откат на упоминание решает воркер доставки.
	if err := c.doJSON(ctx, http.MethodPost, "/internal/direct-messages", requestBody, nil); err != nil {
		return fmt.Errorf("gateway: ошибка отправки DM пользователю %s: %w", userID, err)
	}
	return nil
}

func (c *HTTPGatewayClient) LockChannel(ctx context.Context, channelID string) error {
	requestBody := struct {
		ChannelID string `json:"channel_id"`
	}{ChannelID: channelID}

	if err := c.doJSON(ctx, http.MethodPost, "/internal/channels/lock", requestBody, nil); err != nil {
		return fmt.Errorf("gateway: ошибка блокировки канала %s: %w", channelID, err)
	}
	return nil
}

func (c *HTTPGatewayClient) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]interfaces.SurfaceMessage, error) {
	endpoint := fmt.Sprintf("/internal/channels/%s/messages?limit=%d", channelID, limit)

	var responsePayload struct {
		Data []struct {
			AuthorID string    `json:"author_id"`
			Content  string    `json:"content"`
			SentAt   time.Time `json:"sent_at"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &responsePayload); err != nil {
		return nil, fmt.Errorf("gateway: ошибка чтения сообщений канала %s: %w", channelID, err)
	}

	messages := make([]interfaces.SurfaceMessage, 0, len(responsePayload.Data))
	for _, m := range responsePayload.Data {
		messages = append(messages, interfaces.SurfaceMessage{
			AuthorID: m.AuthorID,
			Content:  m.Content,
			SentAt:   m.SentAt,
		})
	}
	return messages, nil
}

// doJSON выполняет запрос к шлюзу с JSON-телом и декодирует ответ в out (если
// out != nil). Не-2xx статус возвращается как ошибка с телом ответа.
func (c *HTTPGatewayClient) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.interServiceToken != "" {
		req.Header.Set("X-Internal-Service-Token", c.interServiceToken)
	} else {
		c.logger.Warn("Inter-service token is not set for gateway client, API call might fail")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Gateway returned non-OK status",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", respBody))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
