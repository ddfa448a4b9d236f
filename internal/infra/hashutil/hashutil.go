package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
)

// ToolCatalogETag fingerprints a tool list by its verbatim descriptors.
// It returns "" for an empty list or when hashing fails.
func ToolCatalogETag(logger *zap.Logger, tools []domain.ToolDescriptor) string {
	if len(tools) == 0 {
		return ""
	}
	data, err := json.Marshal(tools)
	if err != nil {
		if logger != nil {
			logger.Warn("tool catalog hash failed", zap.Error(err))
		}
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
