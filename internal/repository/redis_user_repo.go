package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/store"
)

// UserListKey はユーザーディレクトリのリストキー。
const UserListKey = "user_list"

// RedisUserRepo はRedisリストを使用したユーザーリポジトリ。
// 更新・削除は「全件読み出し→変更→キー削除→書き戻し」であり、
// アトミックではない（last-writer-wins、既知の弱整合性として維持）。
type RedisUserRepo struct {
	kv store.KV
}

// NewRedisUserRepo はRedisUserRepoを生成する。
func NewRedisUserRepo(kv store.KV) *RedisUserRepo {
	return &RedisUserRepo{kv: kv}
}

// List は全ユーザーを返す。パースできないエントリはスキップされる。
func (r *RedisUserRepo) List(ctx context.Context) ([]*model.User, error) {
	raw, err := r.kv.LRange(ctx, UserListKey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read user list: %w", err)
	}

	users := make([]*model.User, 0, len(raw))
	for _, s := range raw {
		var u model.User
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *RedisUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *RedisUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

// Create はユーザーをリスト先頭に追加する。
func (r *RedisUserRepo) Create(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.kv.LPush(ctx, UserListKey, string(data)); err != nil {
		return fmt.Errorf("failed to append user: %w", err)
	}
	return nil
}

// Update は同一IDのエントリを置き換えてリスト全体を書き戻す。
func (r *RedisUserRepo) Update(ctx context.Context, user *model.User) error {
	users, err := r.List(ctx)
	if err != nil {
		return err
	}

	found := false
	for i, u := range users {
		if u.ID == user.ID {
			users[i] = user
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("user not found in %s: %s", UserListKey, user.ID)
	}

	return r.rewrite(ctx, users)
}

// Delete は指定IDのユーザーをリストから取り除く。
func (r *RedisUserRepo) Delete(ctx context.Context, id string) error {
	users, err := r.List(ctx)
	if err != nil {
		return err
	}

	next := make([]*model.User, 0, len(users))
	found := false
	for _, u := range users {
		if u.ID == id {
			found = true
			continue
		}
		next = append(next, u)
	}
	if !found {
		return fmt.Errorf("user not found in %s: %s", UserListKey, id)
	}

	return r.rewrite(ctx, next)
}

// rewrite はリスト全体を削除して書き戻す。
// 残エントリがない場合はキーを削除したままにする。
func (r *RedisUserRepo) rewrite(ctx context.Context, users []*model.User) error {
	if err := r.kv.Del(ctx, UserListKey); err != nil {
		return fmt.Errorf("failed to delete user list: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	values := make([]string, 0, len(users))
	for _, u := range users {
		data, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		values = append(values, string(data))
	}
	if err := r.kv.RPush(ctx, UserListKey, values...); err != nil {
		return fmt.Errorf("failed to rewrite user list: %w", err)
	}
	return nil
}
