package embed

import (
	"context"
	"errors"
	"fmt"

	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/option"
)

type VertexEmbedder struct {
	svc   *aiplatform.Service
	model string // full publisher model resource name
}

func NewVertexEmbedder(ctx context.Context, projectID, location, modelName string) (*VertexEmbedder, error) {
	if modelName == "" {
		modelName = "text-embedding-004"
	}

	endpoint := fmt.Sprintf("https://%s-aiplatform.googleapis.com/", location)
	svc, err := aiplatform.NewService(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, err
	}

	return &VertexEmbedder{
		svc: svc,
		model: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
			projectID, location, modelName),
	}, nil
}

func (e *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &aiplatform.GoogleCloudAiplatformV1PredictRequest{
		Instances: []interface{}{
			map[string]any{"content": text, "task_type": "RETRIEVAL_QUERY"},
		},
	}

	resp, err := e.svc.Projects.Locations.Publishers.Models.
		Predict(e.model, req).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Predictions) == 0 {
		return nil, errors.New("embed: empty prediction response")
	}

	pred, ok := resp.Predictions[0].(map[string]any)
	if !ok {
		return nil, errors.New("embed: unexpected prediction shape")
	}
	emb, ok := pred["embeddings"].(map[string]any)
	if !ok {
		return nil, errors.New("embed: missing embeddings field")
	}
	values, ok := emb["values"].([]interface{})
	if !ok {
		return nil, errors.New("embed: missing embedding values")
	}

	vec := make([]float32, 0, len(values))
	for _, v := range values {
		f, ok := v.(float64)
		if !ok {
			return nil, errors.New("embed: non-numeric embedding value")
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}
