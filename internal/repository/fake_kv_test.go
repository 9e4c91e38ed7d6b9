package repository

import (
	"context"
	"path"
	"sync"
)

// fakeKV はstore.KVのインメモリ実装。リポジトリテストで使用する。
type fakeKV struct {
	mu      sync.Mutex
	strings map[string]string
	lists   map[string][]string

	// failNext が設定されている場合、次の操作でこのエラーを返す
	failNext error
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
	}
}

func (f *fakeKV) takeErr() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return "", err
	}
	return f.strings[key], nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	f.strings[key] = value
	return nil
}

func (f *fakeKV) LPush(ctx context.Context, key string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	// LPUSHは引数順に1つずつ先頭へ挿入する
	for _, v := range values {
		f.lists[key] = append([]string{v}, f.lists[key]...)
	}
	return nil
}

func (f *fakeKV) RPush(ctx context.Context, key string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	f.lists[key] = append(f.lists[key], values...)
	return nil
}

func (f *fakeKV) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	list := f.lists[key]
	n := int64(len(list))
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if start >= n {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}
	if stop < start {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (f *fakeKV) LLen(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return 0, err
	}
	return int64(len(f.lists[key])), nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	for _, k := range keys {
		delete(f.strings, k)
		delete(f.lists, k)
	}
	return nil
}

func (f *fakeKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	var keys []string
	for k := range f.strings {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k := range f.lists {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
