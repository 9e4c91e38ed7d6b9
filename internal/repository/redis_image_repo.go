package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/store"
)

// ImageKeyPrefix は所有者別台帳リストのキープレフィックス。
// 完全なキーは images:{email} となる。
const ImageKeyPrefix = "images:"

// RedisImageRepo はRedisリストを使用した所有権台帳リポジトリ。
// 1所有者1リストで、各エントリが画像レコードのJSON。最新が先頭。
// Remove/Moveの書き戻しはアトミックではなく、DelとRPushの間のクラッシュで
// 残エントリが失われうる。競合時はlast-writer-wins。
type RedisImageRepo struct {
	kv store.KV
}

// NewRedisImageRepo はRedisImageRepoを生成する。
func NewRedisImageRepo(kv store.KV) *RedisImageRepo {
	return &RedisImageRepo{kv: kv}
}

// ledgerKey は所有者メールから台帳キーを組み立てる。
func ledgerKey(ownerEmail string) string {
	return ImageKeyPrefix + ownerEmail
}

// Append は画像レコードを所有者の台帳の先頭に挿入する。
func (r *RedisImageRepo) Append(ctx context.Context, ownerEmail string, img *model.Image) error {
	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to marshal image: %w", err)
	}
	if err := r.kv.LPush(ctx, ledgerKey(ownerEmail), string(data)); err != nil {
		return fmt.Errorf("failed to append image: %w", err)
	}
	return nil
}

// ListByOwner は所有者の台帳の1ページ分と総件数を返す。
// 台帳は挿入時点で最新が先頭のため、範囲読み出しがそのまま新着順になる。
func (r *RedisImageRepo) ListByOwner(ctx context.Context, ownerEmail string, offset, limit int64) ([]*model.Image, int64, error) {
	key := ledgerKey(ownerEmail)

	total, err := r.kv.LLen(ctx, key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger %s: %w", key, err)
	}

	raw, err := r.kv.LRange(ctx, key, offset, offset+limit-1)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read ledger %s: %w", key, err)
	}

	return parseImages(raw), total, nil
}

// ListAllByOwner は所有者の台帳の全レコードを返す。
func (r *RedisImageRepo) ListAllByOwner(ctx context.Context, ownerEmail string) ([]*model.Image, error) {
	raw, err := r.kv.LRange(ctx, ledgerKey(ownerEmail), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return parseImages(raw), nil
}

// ListAll は全台帳を平坦化し、アップロード時刻の降順で返す。
func (r *RedisImageRepo) ListAll(ctx context.Context) ([]*model.Image, error) {
	keys, err := r.kv.Keys(ctx, ImageKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger keys: %w", err)
	}

	var images []*model.Image
	for _, k := range keys {
		raw, err := r.kv.LRange(ctx, k, 0, -1)
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger %s: %w", k, err)
		}
		images = append(images, parseImages(raw)...)
	}

	// 台帳自体は最新先頭だが、台帳間の順序は保証されないため明示的に再ソートする
	sort.SliceStable(images, func(a, b int) bool {
		return images[a].UploadedTime().After(images[b].UploadedTime())
	})

	return images, nil
}

// FindByID は画像IDで全台帳を線形走査し、レコードと所有者メールを返す。
// レコードIDの完全一致に加え、ストレージファイル名のUUID部分との一致も許容する。
func (r *RedisImageRepo) FindByID(ctx context.Context, imageID string) (*model.Image, string, error) {
	keys, err := r.kv.Keys(ctx, ImageKeyPrefix+"*")
	if err != nil {
		return nil, "", fmt.Errorf("failed to list ledger keys: %w", err)
	}

	for _, k := range keys {
		raw, err := r.kv.LRange(ctx, k, 0, -1)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read ledger %s: %w", k, err)
		}
		for _, img := range parseImages(raw) {
			if img.ID == imageID || img.FileUUID() == imageID {
				return img, strings.TrimPrefix(k, ImageKeyPrefix), nil
			}
		}
	}
	return nil, "", nil
}

// Remove は所有者の台帳から指定IDのレコードを1件取り除き、取り除いたレコードを返す。
// 残りのエントリは元の相対順序のまま書き戻される。
func (r *RedisImageRepo) Remove(ctx context.Context, ownerEmail, imageID string) (*model.Image, error) {
	images, err := r.ListAllByOwner(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	var removed *model.Image
	next := make([]*model.Image, 0, len(images))
	for _, img := range images {
		if removed == nil && img.ID == imageID {
			removed = img
			continue
		}
		next = append(next, img)
	}
	if removed == nil {
		return nil, nil
	}

	if err := r.rewrite(ctx, ownerEmail, next); err != nil {
		return nil, err
	}
	return removed, nil
}

// UpdateInPlace は同一IDのレコードを置き換えて台帳を書き戻す。位置は保持される。
func (r *RedisImageRepo) UpdateInPlace(ctx context.Context, ownerEmail string, img *model.Image) error {
	images, err := r.ListAllByOwner(ctx, ownerEmail)
	if err != nil {
		return err
	}

	found := false
	for i, cur := range images {
		if cur.ID == img.ID {
			images[i] = img
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("image not found in ledger %s: %s", ledgerKey(ownerEmail), img.ID)
	}

	return r.rewrite(ctx, ownerEmail, images)
}

// DeleteAllByOwner は所有者の台帳キーごと削除し、削除前のレコード一覧を返す。
func (r *RedisImageRepo) DeleteAllByOwner(ctx context.Context, ownerEmail string) ([]*model.Image, error) {
	images, err := r.ListAllByOwner(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}
	if err := r.kv.Del(ctx, ledgerKey(ownerEmail)); err != nil {
		return nil, fmt.Errorf("failed to delete ledger: %w", err)
	}
	return images, nil
}

// rewrite は台帳キーを削除し、残エントリがある場合のみ書き戻す。
func (r *RedisImageRepo) rewrite(ctx context.Context, ownerEmail string, images []*model.Image) error {
	key := ledgerKey(ownerEmail)
	if err := r.kv.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to delete ledger %s: %w", key, err)
	}
	if len(images) == 0 {
		return nil
	}

	values := make([]string, 0, len(images))
	for _, img := range images {
		data, err := json.Marshal(img)
		if err != nil {
			return fmt.Errorf("failed to marshal image: %w", err)
		}
		values = append(values, string(data))
	}
	if err := r.kv.RPush(ctx, key, values...); err != nil {
		return fmt.Errorf("failed to rewrite ledger %s: %w", key, err)
	}
	return nil
}

// parseImages はJSONエントリ列を画像レコードに変換する。
// パースできないエントリはスキップし、致命的エラーとしては扱わない。
func parseImages(raw []string) []*model.Image {
	images := make([]*model.Image, 0, len(raw))
	for _, s := range raw {
		var img model.Image
		if err := json.Unmarshal([]byte(s), &img); err != nil {
			continue
		}
		images = append(images, &img)
	}
	return images
}
