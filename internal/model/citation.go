// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Citation is one retrieved document chunk that informed an answer.
type Citation struct {
	DocumentID      string  `json:"document_id"`
	DocumentTitle   string  `json:"document_title"`
	ChunkContent    string  `json:"chunk_content"`
	SimilarityScore float64 `json:"similarity_score"`
	ChunkID         string  `json:"chunk_id,omitempty"`
	ChunkIndex      *int    `json:"chunk_index,omitempty"`
}

// ClampScore bounds a similarity score to [0,1].
func ClampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// ScorePercent returns the similarity score as a whole percentage.
func (c Citation) ScorePercent() int {
	return int(ClampScore(c.SimilarityScore)*100 + 0.5)
}
