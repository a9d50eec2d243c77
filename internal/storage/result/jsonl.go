package result

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/AthenaAgent/athena-dr/internal/agent/trace"
	"github.com/AthenaAgent/athena-dr/pkg/errors"
)

// maxLineBytes 单条结果（含完整轨迹）允许的最大行长
const maxLineBytes = 64 << 20

// JSONLStore 每个结果一行追加写入文件；批量生成的输出格式，也可作为单机 API 的持久化
type JSONLStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewJSONLStore 打开（必要时创建）path 用于追加
func NewJSONLStore(path string) (*JSONLStore, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "jsonl result path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create result dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open result file: %w", err)
	}
	return &JSONLStore{path: path, f: f}, nil
}

// Path 输出文件路径
func (s *JSONLStore) Path() string { return s.path }

// Save 序列化为一行并追加；写入在锁内完成，并发 worker 的行不会交错
func (s *JSONLStore) Save(ctx context.Context, r *trace.Result) error {
	if r == nil || r.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "result id is required")
	}
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	line = append(line, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

// scan 顺序读取全部结果；无法解析的行跳过（如进程中断留下的半行）
func (s *JSONLStore) scan(fn func(*trace.Result)) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ScanResults(f, fn)
}

// ScanResults 逐行解析 JSONL 结果
func ScanResults(r io.Reader, fn func(*trace.Result)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var res trace.Result
		if err := json.Unmarshal(line, &res); err != nil {
			continue
		}
		fn(&res)
	}
	return sc.Err()
}

// Get 同一 ID 多次写入时返回最后一条
func (s *JSONLStore) Get(ctx context.Context, id string) (*trace.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *trace.Result
	err := s.scan(func(r *trace.Result) {
		if r.ID == id {
			found = r
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "result %s", id)
	}
	return found, nil
}

// List 最新在前
func (s *JSONLStore) List(ctx context.Context, limit int) ([]*trace.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		all   []*trace.Result
		index = map[string]int{}
	)
	err := s.scan(func(r *trace.Result) {
		if i, ok := index[r.ID]; ok {
			all[i] = r
			return
		}
		index[r.ID] = len(all)
		all = append(all, r)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*trace.Result, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

// Questions 输出文件中已有的问题
func (s *JSONLStore) Questions(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := map[string]struct{}{}
	err := s.scan(func(r *trace.Result) { qs[r.Question] = struct{}{} })
	return qs, err
}

// Close 关闭文件
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
