// Package meet は外部会議サービスによる参加URLの発行を提供する。
// ベストエフォートの外部連携であり、失敗は呼び出し側でnil URLとして
// 扱われる（研修の作成自体は失敗しない）。
package meet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/skillmarket/internal/security"
)

// Config は会議プロビジョナの設定。
type Config struct {
	// APIURL は会議作成APIのエンドポイント。
	APIURL string
	// APIKey はBearer認証用のAPIキー。
	APIKey string
	// Timeout は会議作成リクエスト全体の上限時間。
	Timeout time.Duration
}

// Provisioner は外部会議APIのクライアント。
// 送信リクエストはSSRF防止機能付きのHTTPクライアントで行う。
type Provisioner struct {
	config Config
	client *http.Client
}

// NewProvisioner はProvisionerを生成する。
func NewProvisioner(config Config, guard security.SSRFGuardService) *Provisioner {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Provisioner{
		config: config,
		client: guard.NewSafeClient(config.Timeout),
	}
}

// createRequest は会議作成APIへのリクエストボディ。
type createRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// createResponse は会議作成APIのレスポンスボディ。
type createResponse struct {
	JoinURL string `json:"join_url"`
}

// CreateMeetingLink は指定期間の会議を作成し、参加URLを返す。
// 呼び出し元のctxの期限とConfigのタイムアウトの短い方が適用される。
func (p *Provisioner) CreateMeetingLink(ctx context.Context, titre, description string, debut, fin time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	payload, err := json.Marshal(createRequest{
		Title:       titre,
		Description: description,
		StartTime:   debut,
		EndTime:     fin,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal meeting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create meeting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("meeting API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// エラーボディは読み捨てる（接続の再利用のため）
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("meeting API returned status %d", resp.StatusCode)
	}

	var result createResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode meeting response: %w", err)
	}
	if result.JoinURL == "" {
		return "", fmt.Errorf("meeting API returned empty join URL")
	}

	return result.JoinURL, nil
}
