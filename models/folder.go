package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Folder represents a folder in the DAM system
type Folder struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Path           string     `json:"path"`
	UserID         string     `json:"user_id"`
	ParentFolderID *string    `json:"parent_folder_id,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Color          *string    `json:"color,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// UnmarshalJSON decodes a server folder record
func (f *Folder) UnmarshalJSON(data []byte) error {
	type plain Folder
	aux := struct {
		*plain
		CreatedAt Timestamp `json:"created_at"`
		UpdatedAt Timestamp `json:"updated_at"`
	}{plain: (*plain)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("invalid folder record: %w", err)
	}
	f.CreatedAt = aux.CreatedAt.Ptr()
	f.UpdatedAt = aux.UpdatedAt.Ptr()
	return nil
}

// FolderFromMap builds a Folder from a decoded JSON object
func FolderFromMap(data map[string]any) (Folder, error) {
	var f Folder
	if err := remarshal(data, &f); err != nil {
		return Folder{}, err
	}
	return f, nil
}
