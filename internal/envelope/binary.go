// Package envelope implements the wire encodings carried by the bearer
// token, the session cookie, and the long-term cookie: the binary
// AuthenticationInfo+rememberMe form (protected by the Token/Cookie
// protectors), and the plaintext long-term cookie JSON payload.
package envelope

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
)

// EncodeAuth serializes info and rememberMe into the canonical binary form
// described by §4.1: actualUser, user, expires, criticalExpires,
// length-prefixed deviceId, rememberMe byte. All integers are big-endian.
func EncodeAuth(info authinfo.AuthenticationInfo, rememberMe bool) []byte {
	var buf bytes.Buffer
	writeUser(&buf, info.ActualUser)
	writeUser(&buf, info.User)
	writeTimestamp(&buf, info.Expires)
	writeTimestamp(&buf, info.CriticalExpires)
	writeString(&buf, info.DeviceID)
	if rememberMe {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// DecodeAuth reverses EncodeAuth. A missing rememberMe byte (truncated
// input) is a decode error, matching §4.1's documented failure mode.
func DecodeAuth(data []byte) (authinfo.AuthenticationInfo, bool, error) {
	r := bytes.NewReader(data)

	actualUser, err := readUser(r)
	if err != nil {
		return authinfo.AuthenticationInfo{}, false, fmt.Errorf("envelope: decoding actualUser: %w", err)
	}
	user, err := readUser(r)
	if err != nil {
		return authinfo.AuthenticationInfo{}, false, fmt.Errorf("envelope: decoding user: %w", err)
	}
	expires, err := readTimestamp(r)
	if err != nil {
		return authinfo.AuthenticationInfo{}, false, fmt.Errorf("envelope: decoding expires: %w", err)
	}
	criticalExpires, err := readTimestamp(r)
	if err != nil {
		return authinfo.AuthenticationInfo{}, false, fmt.Errorf("envelope: decoding criticalExpires: %w", err)
	}
	deviceID, err := readString(r)
	if err != nil {
		return authinfo.AuthenticationInfo{}, false, fmt.Errorf("envelope: decoding deviceId: %w", err)
	}

	rememberByte, err := r.ReadByte()
	if err != nil {
		return authinfo.AuthenticationInfo{}, false, fmt.Errorf("envelope: missing rememberMe byte: %w", err)
	}

	info := authinfo.AuthenticationInfo{
		ActualUser:      actualUser,
		User:            user,
		Expires:         expires,
		CriticalExpires: criticalExpires,
		DeviceID:        deviceID,
	}
	return info, rememberByte != 0, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint16(len(s))) //nolint:errcheck // bytes.Buffer.Write never errors
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", err
	}
	return string(b), nil
}

func writeTimestamp(buf *bytes.Buffer, t *time.Time) {
	if t == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	binary.Write(buf, binary.BigEndian, t.UnixNano()) //nolint:errcheck
}

func readTimestamp(r *bytes.Reader) (*time.Time, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	var nanos int64
	if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
		return nil, err
	}
	t := time.Unix(0, nanos).UTC()
	return &t, nil
}

func writeUser(buf *bytes.Buffer, u authinfo.UserInfo) {
	binary.Write(buf, binary.BigEndian, u.UserID) //nolint:errcheck
	writeString(buf, u.UserName)
	binary.Write(buf, binary.BigEndian, uint16(len(u.Schemes))) //nolint:errcheck
	for _, s := range u.Schemes {
		writeString(buf, s.Name)
		binary.Write(buf, binary.BigEndian, s.LastUsedUTC.UnixNano()) //nolint:errcheck
	}
}

func readUser(r *bytes.Reader) (authinfo.UserInfo, error) {
	var userID int64
	if err := binary.Read(r, binary.BigEndian, &userID); err != nil {
		return authinfo.UserInfo{}, err
	}
	name, err := readString(r)
	if err != nil {
		return authinfo.UserInfo{}, err
	}
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return authinfo.UserInfo{}, err
	}
	var schemes []authinfo.SchemeUse
	for i := uint16(0); i < count; i++ {
		schemeName, err := readString(r)
		if err != nil {
			return authinfo.UserInfo{}, err
		}
		var nanos int64
		if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
			return authinfo.UserInfo{}, err
		}
		schemes = append(schemes, authinfo.SchemeUse{Name: schemeName, LastUsedUTC: time.Unix(0, nanos).UTC()})
	}
	return authinfo.UserInfo{UserID: userID, UserName: name, Schemes: schemes}, nil
}
