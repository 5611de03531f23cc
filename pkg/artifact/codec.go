package artifact

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Kind selects the payload codec recorded in the envelope header. The kind
// is registered per key; decode always honors the kind stored on disk so a
// registration change never misreads old files.
type Kind uint32

const (
	// KindRaw stores the payload bytes unmodified.
	KindRaw Kind = iota
	// KindZstd stores the payload zstd-compressed. Suited to large,
	// repetitive blobs such as tables and experience buffers.
	KindZstd
)

// String returns the config-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindZstd:
		return "zstd"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// ParseKind translates a config string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "":
		return KindRaw, nil
	case "zstd":
		return KindZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Codec translates between a logical payload and its stored body bytes.
type Codec interface {
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

// ForKind returns the codec implementing a kind.
func ForKind(k Kind) (Codec, error) {
	switch k {
	case KindRaw:
		return rawCodec{}, nil
	case KindZstd:
		return zstdShared()
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint32(k))
	}
}

type rawCodec struct{}

func (rawCodec) Encode(src []byte) ([]byte, error) { return src, nil }
func (rawCodec) Decode(src []byte) ([]byte, error) { return src, nil }

// zstdCodec holds one shared encoder/decoder pair. EncodeAll/DecodeAll are
// safe for concurrent use, so a single pair serves every artifact.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var (
	zstdOnce sync.Once
	zstdInst *zstdCodec
	zstdErr  error
)

func zstdShared() (Codec, error) {
	zstdOnce.Do(func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			zstdErr = fmt.Errorf("create zstd encoder: %w", err)
			return
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			zstdErr = fmt.Errorf("create zstd decoder: %w", err)
			return
		}
		zstdInst = &zstdCodec{enc: enc, dec: dec}
	})
	if zstdErr != nil {
		return nil, zstdErr
	}
	return zstdInst, nil
}

func (c *zstdCodec) Encode(src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, nil), nil
}

func (c *zstdCodec) Decode(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
