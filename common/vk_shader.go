package common

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
	"github.com/gogpu/naga"
)

// WGSL entry points looked up per stage. A WGSL module carries all of them, so the same source serves every
// stage of a pipeline.
var wgslEntryPoints = map[renderer.Stage]string{
	renderer.StageVertex:   "vs_main",
	renderer.StageFragment: "fs_main",
	renderer.StageCompute:  "cs_main",
}

// spvEntryPoint is what glslc names the entry of precompiled '.spv' files.
const spvEntryPoint = "main"

// ShaderCompiler is the renderer.ShaderCompiler of the Vulkan backend. A source is either a path to a '.spv'
// or '.wgsl' file, or WGSL text. WGSL goes through naga.
type ShaderCompiler struct {
	dc *Device
}

func NewShaderCompiler(dc *Device) *ShaderCompiler {
	return &ShaderCompiler{dc: dc}
}

func (c *ShaderCompiler) Compile(source string, stage renderer.Stage) (renderer.ShaderModule, error) {
	code, entry, err := loadSPIRV(source, stage)
	if err != nil {
		return renderer.ShaderModule{}, err
	}
	mod, err := VKSCreateShaderModule(c.dc.D, code)
	if err != nil {
		return renderer.ShaderModule{}, fmt.Errorf("%s stage: %w", stage, err)
	}
	log.Printf("Created %s shader module (%d words, entry %q)", stage, len(code), entry)
	return renderer.ShaderModule{Stage: stage, EntryPoint: entry, Handle: mod}, nil
}

// Destroy discards a shader module. As vk.ShaderModule is only meant as a container to move the shader code onto
// device memory, it could go right after pipeline creation, the presenter keeps it for pipeline rebuilds.
func (c *ShaderCompiler) Destroy(m renderer.ShaderModule) {
	if mod, ok := m.Handle.(vk.ShaderModule); ok {
		vk.DestroyShaderModule(c.dc.D, mod, nil)
	}
}

// loadSPIRV resolves source into SPIR-V words and the entry point of stage.
func loadSPIRV(source string, stage renderer.Stage) ([]uint32, string, error) {
	if strings.TrimSpace(source) == "" {
		return nil, "", fmt.Errorf("%s shader: empty source", stage)
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".spv":
		raw, err := os.ReadFile(source)
		if err != nil {
			return nil, "", fmt.Errorf("read shader file: %w", err)
		}
		code, err := SpirvWords(raw)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", source, err)
		}
		return code, spvEntryPoint, nil
	case ".wgsl":
		raw, err := os.ReadFile(source)
		if err != nil {
			return nil, "", fmt.Errorf("read shader file: %w", err)
		}
		source = string(raw)
	}
	entry, ok := wgslEntryPoints[stage]
	if !ok {
		return nil, "", fmt.Errorf("no WGSL entry point for stage %s", stage)
	}
	if !strings.Contains(source, entry) {
		return nil, "", fmt.Errorf("%s shader: WGSL source has no %q entry point", stage, entry)
	}
	code, err := CompileWGSL(source)
	if err != nil {
		return nil, "", err
	}
	return code, entry, nil
}

var errEmptySPIRV = errors.New("naga produced no SPIR-V")

// CompileWGSL compiles WGSL source text to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	if len(spirvBytes) == 0 {
		return nil, errEmptySPIRV
	}
	return SpirvWords(spirvBytes)
}
