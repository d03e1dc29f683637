package llm

import (
	"context"

	"github.com/BaSui01/guardflow/types"
)

// Config 生成参数。零值表示使用后端默认值。
type Config struct {
	Model       string   `json:"model,omitempty" yaml:"model"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Stop        []string `json:"stop,omitempty" yaml:"stop"`
}

// Request 发往后端的一次请求。
//
// Messages 为空时是自包含请求：Instructions 作为系统提示，Prompt 作为用户消息。
// Messages 非空时为消息历史模式，Prompt 若非空则追加为最后一条用户消息。
type Request struct {
	Instructions string          `json:"instructions,omitempty"`
	Prompt       string          `json:"prompt,omitempty"`
	Messages     []types.Message `json:"messages,omitempty"`
	Config       Config          `json:"config"`
}

// HasHistory 是否为消息历史模式
func (r *Request) HasHistory() bool {
	return len(r.Messages) > 0
}

// Conversation 按发送顺序展开全部消息
func (r *Request) Conversation() []types.Message {
	out := make([]types.Message, 0, len(r.Messages)+2)
	if r.Instructions != "" {
		out = append(out, types.Message{Role: types.RoleSystem, Content: r.Instructions})
	}
	out = append(out, r.Messages...)
	if r.Prompt != "" {
		out = append(out, types.Message{Role: types.RoleUser, Content: r.Prompt})
	}
	return out
}

// Clone 深拷贝请求，副本可自由修改
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Messages = types.CloneMessages(r.Messages)
	if r.Config.Temperature != nil {
		t := *r.Config.Temperature
		c.Config.Temperature = &t
	}
	if r.Config.Stop != nil {
		c.Config.Stop = append([]string(nil), r.Config.Stop...)
	}
	return &c
}

// Backend 阻塞式文本生成后端
type Backend interface {
	Send(ctx context.Context, req *Request) (string, error)
}

// BackendFunc 函数适配器
type BackendFunc func(ctx context.Context, req *Request) (string, error)

// Send 实现 Backend
func (f BackendFunc) Send(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// Response 异步后端的单次结果
type Response struct {
	Text string
	Err  error
}

// AsyncBackend 异步后端。返回的通道恰好发送一个 Response 后关闭。
type AsyncBackend interface {
	SendAsync(ctx context.Context, req *Request) <-chan Response
}

// AsyncBackendFunc 函数适配器
type AsyncBackendFunc func(ctx context.Context, req *Request) <-chan Response

// SendAsync 实现 AsyncBackend
func (f AsyncBackendFunc) SendAsync(ctx context.Context, req *Request) <-chan Response {
	return f(ctx, req)
}

// Namer 可选接口，后端实现后错误与指标会带上名称
type Namer interface {
	Name() string
}

// NameOf 返回后端名称，未实现 Namer 时为 "custom"
func NameOf(b any) string {
	if n, ok := b.(Namer); ok {
		return n.Name()
	}
	return "custom"
}

// Async 将阻塞后端包装为异步后端，每次请求一个 goroutine。
func Async(b Backend) AsyncBackend {
	return &asyncAdapter{backend: b}
}

type asyncAdapter struct {
	backend Backend
}

func (a *asyncAdapter) Name() string { return NameOf(a.backend) }

func (a *asyncAdapter) SendAsync(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	go func() {
		defer close(ch)
		text, err := a.backend.Send(ctx, req)
		ch <- Response{Text: text, Err: err}
	}()
	return ch
}

// Await 等待异步结果。ctx 先结束时返回 ctx 错误，结果通道仍会被后端关闭。
func Await(ctx context.Context, ch <-chan Response) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return "", types.NewError(types.ErrTransport, "backend closed the response channel without a result")
		}
		return resp.Text, resp.Err
	}
}
