package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wallet-signer/internal/handler/request"
	"wallet-signer/internal/model"
)

// envelope 与 handler/response.Response 一致
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

type jointParticipantView struct {
	Address string               `json:"address"`
	Status  model.ResponseStatus `json:"status"`
}

// jointRequestView 服务端返回的签名请求
type jointRequestView struct {
	ID               string                 `json:"id"`
	Status           model.JointStatus      `json:"status"`
	MultisigAddress  string                 `json:"multisig_address"`
	Threshold        int                    `json:"threshold"`
	Signed           int                    `json:"signed"`
	Declined         int                    `json:"declined"`
	Participants     []jointParticipantView `json:"participants"`
	Transaction      model.Mirror           `json:"transaction"`
	TransactionBytes []byte                 `json:"transaction_bytes"`
	Deadline         time.Time              `json:"deadline"`
}

func (v jointRequestView) participantAddresses() []string {
	out := make([]string, 0, len(v.Participants))
	for _, p := range v.Participants {
		out = append(out, p.Address)
	}
	return out
}

// jointClient wallet-server 联合签名接口
type jointClient struct {
	base string
	http *http.Client
}

func newJointClient(base string) *jointClient {
	return &jointClient{
		base: strings.TrimRight(base, "/") + "/api/v1/joint/requests",
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *jointClient) Create(ctx context.Context, req request.CreateSignRequest) (jointRequestView, error) {
	var v jointRequestView
	err := c.do(ctx, http.MethodPost, "", req, &v)
	return v, err
}

func (c *jointClient) Get(ctx context.Context, id string) (jointRequestView, error) {
	var v jointRequestView
	err := c.do(ctx, http.MethodGet, "/"+id, nil, &v)
	return v, err
}

func (c *jointClient) Respond(ctx context.Context, id string, req request.SignResponseRequest) (model.JointStatus, error) {
	var out struct {
		Status model.JointStatus `json:"status"`
	}
	err := c.do(ctx, http.MethodPost, "/"+id+"/responses", req, &out)
	return out.Status, err
}

func (c *jointClient) Aggregate(ctx context.Context, id string) (model.SignedBytes, error) {
	var out model.SignedBytes
	err := c.do(ctx, http.MethodPost, "/"+id+"/aggregate", nil, &out)
	return out, err
}

// do 业务错误码非 0 时返回 "code: msg"
func (c *jointClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求 wallet-server 失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wallet-server 返回 HTTP %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("%d: %s", env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
