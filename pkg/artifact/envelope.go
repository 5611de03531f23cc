package artifact

import (
	"bytes"
	"fmt"
	"hash/crc32"

	xdr "github.com/rasky/go-xdr/xdr2"
)

const (
	// envelopeMagic is "SKP1" big-endian.
	envelopeMagic   = uint32(0x534B5031)
	envelopeVersion = uint32(1)

	// HeaderSize is the XDR-encoded size of envelopeHeader: six uint32s.
	HeaderSize = 24
)

// envelopeHeader is the fixed preamble framing every stored payload.
// Encoded with XDR so the layout is explicit and endian-stable.
type envelopeHeader struct {
	Magic    uint32
	Version  uint32
	Kind     uint32
	Flags    uint32
	BodyLen  uint32
	Checksum uint32
}

// Encode frames a payload for storage: the codec body prefixed by an XDR
// header carrying kind, length and a CRC32 of the body.
func Encode(kind Kind, payload []byte) ([]byte, error) {
	codec, err := ForKind(kind)
	if err != nil {
		return nil, err
	}
	body, err := codec.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	hdr := envelopeHeader{
		Magic:    envelopeMagic,
		Version:  envelopeVersion,
		Kind:     uint32(kind),
		BodyLen:  uint32(len(body)),
		Checksum: crc32.ChecksumIEEE(body),
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(body))
	if _, err := xdr.Marshal(&buf, hdr); err != nil {
		return nil, fmt.Errorf("marshal envelope header: %w", err)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode validates a stored envelope and returns the logical payload.
//
// Classification is deliberate: only a zero-length file means "no prior
// state" (ErrNoData) — that is what a fresh artifact and a post-quarantine
// truncate both look like. Any non-empty file that fails to parse, header
// included, is a *CorruptError carrying the artifact id and observed size,
// so even a few bytes of garbage leave a quarantine trace.
func Decode(id ID, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrNoData
	}
	if len(raw) < HeaderSize {
		return nil, &CorruptError{
			ID:     id,
			Reason: fmt.Sprintf("truncated header: %d of %d bytes", len(raw), HeaderSize),
			Size:   int64(len(raw)),
		}
	}

	var hdr envelopeHeader
	if _, err := xdr.Unmarshal(bytes.NewReader(raw[:HeaderSize]), &hdr); err != nil {
		return nil, &CorruptError{ID: id, Reason: fmt.Sprintf("unreadable header: %v", err), Size: int64(len(raw))}
	}
	if hdr.Magic != envelopeMagic {
		return nil, &CorruptError{ID: id, Reason: fmt.Sprintf("bad magic 0x%08X", hdr.Magic), Size: int64(len(raw))}
	}
	if hdr.Version > envelopeVersion {
		return nil, &CorruptError{ID: id, Reason: fmt.Sprintf("unsupported version %d", hdr.Version), Size: int64(len(raw))}
	}

	body := raw[HeaderSize:]
	if uint64(len(body)) != uint64(hdr.BodyLen) {
		return nil, &CorruptError{
			ID:     id,
			Reason: fmt.Sprintf("body length mismatch: header %d, stored %d", hdr.BodyLen, len(body)),
			Size:   int64(len(raw)),
		}
	}
	if sum := crc32.ChecksumIEEE(body); sum != hdr.Checksum {
		return nil, &CorruptError{
			ID:     id,
			Reason: fmt.Sprintf("checksum mismatch: header 0x%08X, computed 0x%08X", hdr.Checksum, sum),
			Size:   int64(len(raw)),
		}
	}

	codec, err := ForKind(Kind(hdr.Kind))
	if err != nil {
		return nil, &CorruptError{ID: id, Reason: err.Error(), Size: int64(len(raw))}
	}
	payload, err := codec.Decode(body)
	if err != nil {
		return nil, &CorruptError{ID: id, Reason: err.Error(), Size: int64(len(raw))}
	}
	return payload, nil
}

// StoredKind peeks at the codec kind recorded in a stored envelope without
// decoding the body. Used by offline verification.
func StoredKind(raw []byte) (Kind, error) {
	if len(raw) == 0 {
		return 0, ErrNoData
	}
	if len(raw) < HeaderSize {
		return 0, fmt.Errorf("truncated header: %d of %d bytes", len(raw), HeaderSize)
	}
	var hdr envelopeHeader
	if _, err := xdr.Unmarshal(bytes.NewReader(raw[:HeaderSize]), &hdr); err != nil {
		return 0, fmt.Errorf("unreadable header: %w", err)
	}
	return Kind(hdr.Kind), nil
}
