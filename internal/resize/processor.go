// Package resize はラスター画像のリサイズ処理を提供する。
//
// デコード→EXIFの向きに従う自動回転→アスペクト比を保った縮小→
// 元形式での再エンコード、という固定パイプライン。拡大は行わない。
// JPEGは品質90、PNGは最大圧縮で再エンコードする。
package resize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrUnsupportedFormat はラスタライズ対象外の形式（SVG等）を表す。
var ErrUnsupportedFormat = errors.New("unsupported image format for resize")

// Processor は画像リサイズの実装。状態を持たない。
type Processor struct{}

// NewProcessor はProcessorを生成する。
func NewProcessor() *Processor {
	return &Processor{}
}

// ResizeFile は指定パスの画像をリサイズし、同一パスに上書き保存して
// 新しいファイルサイズを返す。width/heightは0で「指定なし」を表すが、
// 両方0にはできない（呼び出し側で検証済みであること）。
// 一時ファイル経由のリネームは行わないため、書き込み途中のクラッシュで
// ファイルが破損しうる（許容されたリスク）。
func (p *Processor) ResizeFile(path string, width, height int) (int64, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !encodableExt(ext) {
		return 0, ErrUnsupportedFormat
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := fitWithin(img, width, height)

	if err := save(resized, path, ext); err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat resized file: %w", err)
	}
	return info.Size(), nil
}

// ResizeBytes は画像バイト列をリサイズして再エンコードしたバイト列を返す。
// 配信時のオンザフライリサイズで使用する（元ファイルは変更しない）。
func (p *Processor) ResizeBytes(data []byte, ext string, width, height int) ([]byte, error) {
	ext = strings.ToLower(ext)
	if !encodableExt(ext) {
		return nil, ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := fitWithin(img, width, height)

	var buf bytes.Buffer
	switch ext {
	case ".jpg", ".jpeg":
		err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	case ".png":
		err = imaging.Encode(&buf, resized, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

const jpegQuality = 90

// fitWithin は指定ボックスに収まるようアスペクト比を保って縮小する。
// 元寸法を超える拡大は行わず、その場合は元画像をそのまま返す。
func fitWithin(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	ow, oh := bounds.Dx(), bounds.Dy()

	switch {
	case width > 0 && height > 0:
		if width >= ow && height >= oh {
			return img
		}
		// imaging.Fitはボックス内に収める縮小のみ行う
		return imaging.Fit(img, width, height, imaging.Lanczos)
	case width > 0:
		if width >= ow {
			return img
		}
		return imaging.Resize(img, width, 0, imaging.Lanczos)
	case height > 0:
		if height >= oh {
			return img
		}
		return imaging.Resize(img, 0, height, imaging.Lanczos)
	default:
		return img
	}
}

// save は拡張子に応じたエンコードオプションで上書き保存する。
func save(img image.Image, path, ext string) error {
	var err error
	switch ext {
	case ".jpg", ".jpeg":
		err = imaging.Save(img, path, imaging.JPEGQuality(jpegQuality))
	case ".png":
		err = imaging.Save(img, path, imaging.PNGCompressionLevel(png.BestCompression))
	default:
		return ErrUnsupportedFormat
	}
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// encodableExt は再エンコード可能な拡張子かどうかを返す。
func encodableExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
