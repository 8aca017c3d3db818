// Package gallery manages tenant photo galleries and parking images as
// ordered list entities, plus the presigned-upload handshake: create a
// record and hand out an upload URL, finalize once the object exists,
// delete the record first and the object best-effort.
package gallery

import (
	"context"
	"fmt"
	"strings"

	"github.com/vowsuite/vowsuite/internal/keys"
)

// Storage is the slice of object storage the gallery needs.
type Storage interface {
	PresignUpload(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Image is one gallery or parking image. ObjectKey points into the
// tenant's object-storage namespace; Uploaded flips when the upload is
// finalized, and public listings only show uploaded images.
type Image struct {
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk" json:"-"`

	ID        string  `dynamodbav:"id" json:"id"`
	TenantID  string  `dynamodbav:"tenantId" json:"tenantId"`
	ObjectKey string  `dynamodbav:"objectKey" json:"objectKey"`
	Caption   *string `dynamodbav:"caption,omitempty" json:"caption,omitempty"`
	Uploaded  bool    `dynamodbav:"uploaded" json:"uploaded"`
	Order     int     `dynamodbav:"order" json:"order"`
	CreatedAt string  `dynamodbav:"createdAt" json:"createdAt"`
}

// category names the object-storage folder per image kind.
func category(kind keys.Kind) (string, error) {
	switch kind {
	case keys.KindImage:
		return "gallery", nil
	case keys.KindParkingImage:
		return "parking", nil
	}
	return "", fmt.Errorf("kind %s has no image category", kind)
}

// validFilename rejects names that could escape the tenant folder.
func validFilename(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	return !strings.ContainsAny(name, "/\\") && !strings.Contains(name, "..")
}

func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
