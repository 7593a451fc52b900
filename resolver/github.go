package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// fetchGitHub reads path from the contents API of repo root ("owner/repo").
func (r *Resolver) fetchGitHub(ctx context.Context, root, path string) (string, error) {
	body, err := r.get(ctx, r.githubAPI+"/repos/"+root+"/contents/"+path)
	if err != nil {
		return "", err
	}
	content := gjson.GetBytes(body, "content")
	if !content.Exists() {
		return "", ErrContentNotReceived
	}
	// the API wraps the payload at 60 columns
	encoded := strings.NewReplacer("\n", "", "\r", "").Replace(content.String())
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}
	return string(decoded), nil
}
