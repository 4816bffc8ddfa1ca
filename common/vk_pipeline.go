package common

import (
	"fmt"
	"log"

	"GPU_frame_presenter/renderer"
	vk "github.com/goki/vulkan"
)

// VertexLayout describes how the bound vertex buffer is read by the vertex stage.
type VertexLayout struct {
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

// PipelineBuilder is the renderer.PipelineBuilder of the Vulkan backend. Graphics pipelines come with their own
// render pass for the ring format and bake the viewport in, so they are rebuilt whenever the extent changes.
type PipelineBuilder struct {
	dc     *Device
	layout VertexLayout
}

func NewPipelineBuilder(dc *Device, layout VertexLayout) *PipelineBuilder {
	return &PipelineBuilder{dc: dc, layout: layout}
}

func (pb *PipelineBuilder) Build(kind renderer.PipelineKind, format renderer.Format, extent renderer.Extent, shaders []renderer.ShaderModule) (renderer.Pipeline, error) {
	stages, err := shaderStages(shaders)
	if err != nil {
		return renderer.Pipeline{}, err
	}
	switch kind {
	case renderer.PipelineGraphics:
		return pb.buildGraphics(vk.Format(format), extent, stages)
	case renderer.PipelineCompute:
		return pb.buildCompute(stages)
	}
	return renderer.Pipeline{}, fmt.Errorf("build pipeline: unknown kind %d", kind)
}

func (pb *PipelineBuilder) Destroy(p renderer.Pipeline) {
	d := pb.dc.D
	if h, ok := p.Handle.(vk.Pipeline); ok {
		vk.DestroyPipeline(d, h, nil)
	}
	if l, ok := p.Layout.(vk.PipelineLayout); ok {
		vk.DestroyPipelineLayout(d, l, nil)
	}
	if rp, ok := p.Pass.(vk.RenderPass); ok {
		vk.DestroyRenderPass(d, rp, nil)
	}
}

func shaderStages(shaders []renderer.ShaderModule) ([]vk.PipelineShaderStageCreateInfo, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(shaders))
	for _, s := range shaders {
		mod, ok := s.Handle.(vk.ShaderModule)
		if !ok {
			return nil, fmt.Errorf("%s shader: %T is not a shader module", s.Stage, s.Handle)
		}
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:               vk.StructureTypePipelineShaderStageCreateInfo,
			PNext:               nil,
			Flags:               0,
			Stage:               toShaderStageBit(s.Stage),
			Module:              mod,
			PName:               TerminatedStr(s.EntryPoint), // entrypoint -> function name in the shader
			PSpecializationInfo: nil,
		})
	}
	return stages, nil
}

func toShaderStageBit(s renderer.Stage) vk.ShaderStageFlagBits {
	switch s {
	case renderer.StageFragment:
		return vk.ShaderStageFragmentBit
	case renderer.StageCompute:
		return vk.ShaderStageComputeBit
	}
	return vk.ShaderStageVertexBit
}

func (pb *PipelineBuilder) createRenderPass(format vk.Format) (vk.RenderPass, error) {
	colorAttachment := vk.AttachmentDescription{
		Flags:          0,
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	colorAttachmentRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		Flags:                   0,
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorAttachmentRef},
		PDepthStencilAttachment: nil,
	}
	// The image is only writable once acquisition released it, which is signalled at the colour output stage.
	dependency := vk.SubpassDependency{
		SrcSubpass:      vk.SubpassExternal,
		DstSubpass:      0,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask:   0,
		DstAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DependencyFlags: 0,
	}
	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		PNext:           nil,
		Flags:           0,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	return create("render pass", func(out *vk.RenderPass) vk.Result {
		return vk.CreateRenderPass(pb.dc.D, &renderPassInfo, nil, out)
	})
}

func (pb *PipelineBuilder) createLayout() (vk.PipelineLayout, error) {
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PNext:                  nil,
		Flags:                  0,
		SetLayoutCount:         0,
		PSetLayouts:            nil,
		PushConstantRangeCount: 0,
		PPushConstantRanges:    nil,
	}
	return create("pipeline layout", func(out *vk.PipelineLayout) vk.Result {
		return vk.CreatePipelineLayout(pb.dc.D, &pipelineLayoutInfo, nil, out)
	})
}

func (pb *PipelineBuilder) buildGraphics(format vk.Format, extent renderer.Extent, stages []vk.PipelineShaderStageCreateInfo) (renderer.Pipeline, error) {
	if len(stages) < 2 {
		return renderer.Pipeline{}, fmt.Errorf("graphics pipeline needs vertex and fragment stages, got %d", len(stages))
	}
	if extent.IsZero() {
		return renderer.Pipeline{}, renderer.ErrZeroExtent
	}
	renderPass, err := pb.createRenderPass(format)
	if err != nil {
		return renderer.Pipeline{}, err
	}
	layout, err := pb.createLayout()
	if err != nil {
		vk.DestroyRenderPass(pb.dc.D, renderPass, nil)
		return renderer.Pipeline{}, err
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		PNext:                           nil,
		Flags:                           0,
		VertexBindingDescriptionCount:   uint32(len(pb.layout.Bindings)),
		PVertexBindingDescriptions:      pb.layout.Bindings,
		VertexAttributeDescriptionCount: uint32(len(pb.layout.Attributes)),
		PVertexAttributeDescriptions:    pb.layout.Attributes,
	}
	inputAssemblyInfo := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		PNext:                  nil,
		Flags:                  0,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	// Static viewport and scissor, the pipeline is rebuilt with the ring.
	viewportStateInfo := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		PNext:         nil,
		Flags:         0,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1.0,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		}},
	}
	rasterizerInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		PNext:                   nil,
		Flags:                   0,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	multisamplingInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		PNext:                 nil,
		Flags:                 0,
		RasterizationSamples:  vk.SampleCount1Bit,
		SampleShadingEnable:   vk.False,
		MinSampleShading:      1.0,
		PSampleMask:           nil,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}
	colorBlendAttachmentInfo := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlendingInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		PNext:           nil,
		Flags:           0,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentInfo},
		BlendConstants:  [4]float32{0, 0, 0, 0},
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               nil,
		Flags:               0,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssemblyInfo,
		PTessellationState:  nil,
		PViewportState:      &viewportStateInfo,
		PRasterizationState: &rasterizerInfo,
		PMultisampleState:   &multisamplingInfo,
		PDepthStencilState:  nil,
		PColorBlendState:    &colorBlendingInfo,
		PDynamicState:       nil,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipeline, err := create("graphics pipeline", func(out *vk.Pipeline) vk.Result {
		pipelines := make([]vk.Pipeline, 1)
		ret := vk.CreateGraphicsPipelines(pb.dc.D, nil, 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines)
		*out = pipelines[0]
		return ret
	})
	if err != nil {
		vk.DestroyPipelineLayout(pb.dc.D, layout, nil)
		vk.DestroyRenderPass(pb.dc.D, renderPass, nil)
		return renderer.Pipeline{}, err
	}
	log.Printf("Successfully created graphics pipeline for %dx%d", extent.Width, extent.Height)
	return renderer.Pipeline{
		Kind:   renderer.PipelineGraphics,
		Handle: pipeline,
		Layout: layout,
		Pass:   renderPass,
		Extent: extent,
	}, nil
}

func (pb *PipelineBuilder) buildCompute(stages []vk.PipelineShaderStageCreateInfo) (renderer.Pipeline, error) {
	if len(stages) != 1 || stages[0].Stage != vk.ShaderStageComputeBit {
		return renderer.Pipeline{}, fmt.Errorf("compute pipeline needs exactly one compute stage, got %d stages", len(stages))
	}
	layout, err := pb.createLayout()
	if err != nil {
		return renderer.Pipeline{}, err
	}
	pipelineInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		PNext:              nil,
		Flags:              0,
		Stage:              stages[0],
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pipeline, err := create("compute pipeline", func(out *vk.Pipeline) vk.Result {
		pipelines := make([]vk.Pipeline, 1)
		ret := vk.CreateComputePipelines(pb.dc.D, nil, 1, []vk.ComputePipelineCreateInfo{pipelineInfo}, nil, pipelines)
		*out = pipelines[0]
		return ret
	})
	if err != nil {
		vk.DestroyPipelineLayout(pb.dc.D, layout, nil)
		return renderer.Pipeline{}, err
	}
	log.Printf("Successfully created compute pipeline")
	return renderer.Pipeline{Kind: renderer.PipelineCompute, Handle: pipeline, Layout: layout}, nil
}
