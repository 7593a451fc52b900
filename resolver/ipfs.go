package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ipfs/go-cid"
)

var ipfsSchemeRE = regexp.MustCompile(`^ipfs://?`)

// fetchIPFS rewrites ipfs://<cid>/<path> to <gateway>/ipfs/<cid>/<path>.
func (r *Resolver) fetchIPFS(ctx context.Context, url string) (string, error) {
	path := ipfsSchemeRE.ReplaceAllString(url, "ipfs/")

	root, _, _ := strings.Cut(strings.TrimPrefix(path, "ipfs/"), "/")
	if _, err := cid.Decode(root); err != nil {
		return "", fmt.Errorf("invalid CID %q: %w", root, err)
	}

	body, err := r.get(ctx, r.ipfsGateway+"/"+path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
