package ports

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/docflow/helper"
)

// HugotVectorizer runs a sentence transformer model through hugot's Go backend.
// The default model is all-MiniLM-L6-v2 producing 384-dimensional embeddings.
type HugotVectorizer struct {
	session   *hugot.Session
	embed     func(text string) ([]float32, error)
	dimension int
}

// NewHugotVectorizer downloads the model if needed and creates the extraction
// pipeline.
func NewHugotVectorizer(modelName string, dimension int) (*HugotVectorizer, error) {
	if modelName == "" {
		modelName = "sentence-transformers/all-MiniLM-L6-v2"
		dimension = 384
	}

	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, helper.NewKindError("prepare model", helper.KindPortUnavailable, err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, helper.NewKindError("create hugot session", helper.KindPortUnavailable, err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "vectorizer-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, helper.NewKindError("create sentence pipeline", helper.KindPortUnavailable, fmt.Errorf("%w (cleanup error: %v)", err, destroyErr))
		}
		return nil, helper.NewKindError("create sentence pipeline", helper.KindPortUnavailable, err)
	}

	embed := func(text string) ([]float32, error) {
		result, err := sentencePipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, err
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}
		return result.Embeddings[0], nil
	}

	return &HugotVectorizer{
		session:   session,
		embed:     embed,
		dimension: dimension,
	}, nil
}

// Dimension returns the embedding dimension of the loaded model.
func (v *HugotVectorizer) Dimension() int {
	return v.dimension
}

// Vectorize generates the embedding for a single text.
func (v *HugotVectorizer) Vectorize(ctx context.Context, text string) ([]float32, error) {
	embedding, err := v.embed(text)
	if err != nil {
		return nil, helper.NewKindError("generate embedding", helper.KindPortUnavailable, err)
	}
	return embedding, nil
}

// Close destroys the hugot session.
func (v *HugotVectorizer) Close() error {
	if v.session != nil {
		return v.session.Destroy()
	}
	return nil
}
