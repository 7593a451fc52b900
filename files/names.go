package files

import (
	"context"
	"strconv"
	"strings"
)

// NonClashingName returns path, or path with a counter inserted before the
// .sol extension, such that p does not already contain it.
func NonClashingName(ctx context.Context, p Provider, path string) string {
	base := strings.TrimSuffix(path, ".sol")
	counter := ""
	for n := 0; p.Exists(ctx, base+counter+".sol"); {
		n++
		counter = strconv.Itoa(n)
	}
	return base + counter + ".sol"
}
