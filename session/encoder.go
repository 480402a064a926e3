package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

// Encode serializes a session record. TokenHash is not encoded: it is the
// storage key and is restored by the reader.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := writeString8(&buf, s.ID); err != nil {
		return nil, errors.New("session id too long")
	}
	if err := writeString8(&buf, s.UserID); err != nil {
		return nil, errors.New("userID too long")
	}
	if err := writeString16(&buf, s.UserAgent); err != nil {
		return nil, errors.New("user agent too long")
	}
	if err := writeString8(&buf, s.IPAddress); err != nil {
		return nil, errors.New("ip address too long")
	}

	for _, ts := range []int64{s.CreatedAt, s.UpdatedAt, s.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}
	if s.ID, err = readString8(reader); err != nil {
		return nil, err
	}
	if s.UserID, err = readString8(reader); err != nil {
		return nil, err
	}
	if s.UserAgent, err = readString16(reader); err != nil {
		return nil, err
	}
	if s.IPAddress, err = readString8(reader); err != nil {
		return nil, err
	}

	for _, ts := range []*int64{&s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func writeString8(buf *bytes.Buffer, v string) error {
	if len(v) > 255 {
		return errors.New("string too long")
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeString16(buf *bytes.Buffer, v string) error {
	if len(v) > 65535 {
		return errors.New("string too long")
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(v)))
	buf.Write(n[:])
	buf.WriteString(v)
	return nil
}

func readString8(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func readString16(r *bytes.Reader) (string, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", err
	}
	raw := make([]byte, binary.BigEndian.Uint16(n[:]))
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
