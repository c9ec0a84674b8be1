package builder

import (
	"fmt"
	"strings"
)

// ParamDeclaration returns the OpenCL C declaration of one kernel parameter
func ParamDeclaration(spec *ParamSpec) string {
	typeName := TypeName(spec.GetEffectiveType())
	switch spec.Direction {
	case DirectionScalar:
		return fmt.Sprintf("const %s %s", typeName, spec.Name)
	case DirectionLocal:
		return fmt.Sprintf("__local %s* %s", typeName, spec.Name)
	case DirectionInput:
		return fmt.Sprintf("__global const %s* %s", typeName, spec.Name)
	default:
		return fmt.Sprintf("__global %s* %s", typeName, spec.Name)
	}
}

// GenerateKernelSignature generates the parameter list for a kernel taking
// params in declaration order
func GenerateKernelSignature(params ...*ParamBuilder) string {
	decls := make([]string, len(params))
	for i, p := range params {
		decls[i] = ParamDeclaration(&p.Spec)
	}
	return strings.Join(decls, ",\n\t")
}

// GenerateKernelDeclaration generates a complete kernel function declaration
func GenerateKernelDeclaration(kernelName string, params ...*ParamBuilder) string {
	return fmt.Sprintf("__kernel void %s(\n\t%s\n)", kernelName, GenerateKernelSignature(params...))
}

// GenerateKernelTemplate wraps body in a kernel with the generated declaration
func GenerateKernelTemplate(kernelName string, body string, params ...*ParamBuilder) string {
	var sb strings.Builder
	sb.WriteString(GenerateKernelDeclaration(kernelName, params...))
	sb.WriteString("\n{\n")
	if body != "" {
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			if line == "" {
				sb.WriteString("\n")
				continue
			}
			sb.WriteString("\t" + line + "\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
