package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/pipeline"
)

// NewGraphCmd создаёт команду вывода структуры pipeline.
//
// По умолчанию граф строится локально; с --remote берётся из API.
func NewGraphCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print pipeline steps in execution order and their edges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			var (
				p   *PipelineResponse
				err error
			)
			if remote {
				p, err = clientFn().GetPipeline()
			} else {
				p, err = LocalPipeline()
			}
			if err != nil {
				return err
			}

			PrintGraph(out, p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the graph from the API server")

	return cmd
}

// LocalPipeline строит описание pipeline без обращения к API.
func LocalPipeline() (*PipelineResponse, error) {
	spec := pipeline.Definition()
	dag, err := engine.BuildDAG(spec)
	if err != nil {
		return nil, err
	}

	p := &PipelineResponse{
		Name:        spec.Name,
		Description: spec.Description,
		Order:       dag.OrderIDs(),
	}
	for _, s := range spec.Steps {
		p.Steps = append(p.Steps, StepResponse{
			ID:        s.ID,
			Name:      s.Name,
			Type:      s.Type,
			Phase:     string(s.Phase),
			DependsOn: s.DependsOn,
		})
	}
	for _, e := range dag.Edges() {
		p.Edges = append(p.Edges, EdgeResponse{From: e.From, To: e.To})
	}
	return p, nil
}

// PrintGraph выводит шаги в порядке выполнения и рёбра графа.
func PrintGraph(out *Output, p *PipelineResponse) {
	if out.jsonMode {
		out.JSON(p)
		return
	}

	byID := make(map[string]StepResponse, len(p.Steps))
	for _, s := range p.Steps {
		byID[s.ID] = s
	}

	rows := make([][]string, 0, len(p.Order))
	for i, id := range p.Order {
		s := byID[id]
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.ID,
			s.Type,
			s.Phase,
			orDash(strings.Join(s.DependsOn, ",")),
		})
	}

	out.Line("%s", p.Name)
	out.Table([]string{"#", "STEP", "TYPE", "PHASE", "DEPENDS_ON"}, rows)
	out.Line("")
	for _, e := range p.Edges {
		out.Line("%s -> %s", e.From, e.To)
	}
}
