package repository

import (
	"encoding/json"
	"time"
)

func nowUTC() time.Time { return time.Now().UTC() }

// snapshotJSON 行快照序列化（变更事件的 before/after；失败时返回 nil，事件仍然发出）
func snapshotJSON(m map[string]any) json.RawMessage {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}
