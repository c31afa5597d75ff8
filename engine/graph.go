package engine

// compiledNode 编译后的节点，输入引用已换成数组下标
type compiledNode struct {
	typ       NodeType
	value     float64
	indicator IndicatorKind
	params    map[string]float64
	operator  string
	inputs    []int
}

// compiledGraph 编译后的指标图：扁平节点池按整数句柄索引
type compiledGraph struct {
	nodes  []compiledNode
	output int
}

// compileGraph 构建节点池并校验图结构
// 缺失引用、运算/条件节点入参不足、未知指标或运算符、环均为编译错误
func compileGraph(ind *CustomIndicator) (*compiledGraph, error) {
	index := make(map[string]int, len(ind.Nodes))
	for i, node := range ind.Nodes {
		index[node.ID] = i
	}

	output, ok := index[ind.OutputNodeID]
	if !ok {
		return nil, nodeError(ErrNodeNotFound, ind.OutputNodeID)
	}

	g := &compiledGraph{
		nodes:  make([]compiledNode, len(ind.Nodes)),
		output: output,
	}

	for i, node := range ind.Nodes {
		cn := compiledNode{
			typ:       node.Type,
			value:     node.Value,
			indicator: node.Indicator,
			params:    node.Params,
			operator:  node.Operator,
		}

		switch node.Type {
		case NodeConstant:
			// 无输入

		case NodeIndicator:
			switch node.Indicator {
			case KindSMA, KindEMA, KindRSI, KindVolume:
			default:
				return nil, nodeError(ErrUnknownIndicator, node.ID)
			}

		case NodeOperator, NodeCondition:
			if len(node.Inputs) < 2 {
				return nil, nodeError(ErrTooFewInputs, node.ID)
			}
			if !validOperator(node.Type, node.Operator) {
				return nil, nodeError(ErrUnknownOperator, node.ID)
			}
			cn.inputs = make([]int, len(node.Inputs))
			for k, ref := range node.Inputs {
				idx, ok := index[ref]
				if !ok {
					return nil, nodeError(ErrNodeNotFound, ref)
				}
				cn.inputs[k] = idx
			}

		default:
			return nil, nodeError(ErrUnknownNodeType, node.ID)
		}

		g.nodes[i] = cn
	}

	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

func validOperator(typ NodeType, op string) bool {
	if typ == NodeOperator {
		switch op {
		case OpAdd, OpSub, OpMul, OpDiv:
			return true
		}
		return false
	}
	switch op {
	case OpGT, OpLT, OpEQ, OpAnd, OpOr:
		return true
	}
	return false
}

// detectCycle 三色 DFS 检测环，防止求值时无限递归
func (g *compiledGraph) detectCycle() error {
	const (
		white = 0 // 未访问
		gray  = 1 // 访问中
		black = 2 // 已完成
	)
	colors := make([]int, len(g.nodes))

	var visit func(i int) error
	visit = func(i int) error {
		colors[i] = gray
		for _, input := range g.nodes[i].inputs {
			switch colors[input] {
			case gray:
				return ErrGraphCycle
			case white:
				if err := visit(input); err != nil {
					return err
				}
			}
		}
		colors[i] = black
		return nil
	}

	for i := range g.nodes {
		if colors[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}
