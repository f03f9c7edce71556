package authinfo

import (
	"encoding/json"
	"time"
)

// jsonScheme is the wire shape of a single SchemeUse entry.
type jsonScheme struct {
	Name     string    `json:"name"`
	LastUsed time.Time `json:"lastUsed"`
}

// jsonUserInfo is the wire shape of a UserInfo.
type jsonUserInfo struct {
	UserID   int64        `json:"userId"`
	UserName string       `json:"userName,omitempty"`
	Schemes  []jsonScheme `json:"schemes,omitempty"`
}

func toJSONUserInfo(u UserInfo) jsonUserInfo {
	j := jsonUserInfo{UserID: u.UserID, UserName: u.UserName}
	for _, s := range u.Schemes {
		j.Schemes = append(j.Schemes, jsonScheme{Name: s.Name, LastUsed: s.LastUsedUTC})
	}
	return j
}

func (j jsonUserInfo) toUserInfo() UserInfo {
	u := UserInfo{UserID: j.UserID, UserName: j.UserName}
	for _, s := range j.Schemes {
		u.Schemes = append(u.Schemes, SchemeUse{Name: s.Name, LastUsedUTC: s.LastUsed})
	}
	return u
}

// jsonAuthInfo is the wire shape of an AuthenticationInfo. ActualUser is
// omitted whenever it equals User (the common, non-impersonated case).
type jsonAuthInfo struct {
	User            jsonUserInfo  `json:"user"`
	ActualUser      *jsonUserInfo `json:"actualUser,omitempty"`
	Expires         *time.Time    `json:"exp,omitempty"`
	CriticalExpires *time.Time    `json:"cexp,omitempty"`
	DeviceID        string        `json:"deviceId,omitempty"`
}

// MarshalJSON implements json.Marshaler using the exact key names specified
// by the authentication info wire format.
func (a AuthenticationInfo) MarshalJSON() ([]byte, error) {
	j := jsonAuthInfo{
		User:            toJSONUserInfo(a.User),
		Expires:         a.Expires,
		CriticalExpires: a.CriticalExpires,
		DeviceID:        a.DeviceID,
	}
	if !a.User.Equal(a.ActualUser) {
		au := toJSONUserInfo(a.ActualUser)
		j.ActualUser = &au
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler. ActualUser defaults to User
// when absent from the payload.
func (a *AuthenticationInfo) UnmarshalJSON(data []byte) error {
	var j jsonAuthInfo
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	a.User = j.User.toUserInfo()
	if j.ActualUser != nil {
		a.ActualUser = j.ActualUser.toUserInfo()
	} else {
		a.ActualUser = a.User
	}
	a.Expires = j.Expires
	a.CriticalExpires = j.CriticalExpires
	a.DeviceID = j.DeviceID
	return nil
}
