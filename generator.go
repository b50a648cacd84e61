package ho

import "context"

// GenerateRequest is what a Strategy hands a phase's generator.
type GenerateRequest struct {
	// N is the exact number of points to return.
	N int

	// Data holds every observation gathered so far, unmodified.
	Data Data

	// Pending holds the points of in-flight trials. Generators must not
	// suggest them again.
	Pending []Point
}

// Generator produces candidate points for one phase. Implementations are
// the actual search algorithms (random sampling, model-based optimization)
// and carry their own validated configuration.
//
// Generate must return exactly req.N points or an error. The strategy does
// not retry failed calls, and it does not impose a timeout: use ctx.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Point, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) ([]Point, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) ([]Point, error) {
	return f(ctx, req)
}
