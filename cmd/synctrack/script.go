package main

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/vkngwrapper/arsenal/synctrack/syncstate"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Operations a script step can perform
const (
	opAccess  = "access"
	opState   = "state"
	opDiscard = "discard"
	opAcquire = "acquire"
	opRelease = "release"
)

type bufferDecl struct {
	Name string
	Size int
}

type imageDecl struct {
	Name        string
	AspectMask  core1_0.ImageAspectFlags
	MipLevels   int
	ArrayLayers int
}

// scriptStep is one line of a replay script. Buffer steps use Offset and Size, image steps use
// Subresources.
type scriptStep struct {
	Op     string
	Buffer string
	Image  string

	Offset       int
	Size         int
	Subresources core1_0.ImageSubresourceRange

	Access syncstate.AccessScope
}

type script struct {
	Buffers []bufferDecl
	Images  []imageDecl
	Steps   []scriptStep
}

// parseScript reads a replay script of the form
//
//	{
//	  "buffers": [{"name": "vertices", "size": 4096}],
//	  "images": [{"name": "albedo", "aspectMask": 1, "mipLevels": 10, "arrayLayers": 1}],
//	  "steps": [
//	    {"buffer": "vertices", "offset": 0, "size": 4096, "accessMask": 4096, "stageMask": 4096},
//	    {"op": "state", "image": "albedo", "aspectMask": 1, "levelCount": 10, "layerCount": 1}
//	  ]
//	}
func parseScript(data []byte) (*script, error) {
	r := jreader.NewReader(data)
	s := &script{}

	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "buffers":
			for arr := r.Array(); arr.Next(); {
				s.Buffers = append(s.Buffers, readBufferDecl(&r))
			}
		case "images":
			for arr := r.Array(); arr.Next(); {
				s.Images = append(s.Images, readImageDecl(&r))
			}
		case "steps":
			for arr := r.Array(); arr.Next(); {
				s.Steps = append(s.Steps, readStep(&r))
			}
		default:
			_ = r.SkipValue()
		}
	}

	if err := r.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to parse replay script")
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func readBufferDecl(r *jreader.Reader) bufferDecl {
	var decl bufferDecl
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "name":
			decl.Name = r.String()
		case "size":
			decl.Size = r.Int()
		default:
			_ = r.SkipValue()
		}
	}
	return decl
}

func readImageDecl(r *jreader.Reader) imageDecl {
	decl := imageDecl{
		AspectMask:  core1_0.ImageAspectColor,
		MipLevels:   1,
		ArrayLayers: 1,
	}
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "name":
			decl.Name = r.String()
		case "aspectMask":
			decl.AspectMask = core1_0.ImageAspectFlags(r.Int())
		case "mipLevels":
			decl.MipLevels = r.Int()
		case "arrayLayers":
			decl.ArrayLayers = r.Int()
		default:
			_ = r.SkipValue()
		}
	}
	return decl
}

func readStep(r *jreader.Reader) scriptStep {
	step := scriptStep{
		Op: opAccess,
		Access: syncstate.AccessScope{
			QueueFamily: syncstate.QueueFamilyIgnored,
		},
	}

	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "op":
			step.Op = r.String()
		case "buffer":
			step.Buffer = r.String()
		case "image":
			step.Image = r.String()
		case "offset":
			step.Offset = r.Int()
		case "size":
			step.Size = r.Int()
		case "aspectMask":
			step.Subresources.AspectMask = core1_0.ImageAspectFlags(r.Int())
		case "baseMipLevel":
			step.Subresources.BaseMipLevel = r.Int()
		case "levelCount":
			step.Subresources.LevelCount = r.Int()
		case "baseArrayLayer":
			step.Subresources.BaseArrayLayer = r.Int()
		case "layerCount":
			step.Subresources.LayerCount = r.Int()
		case "accessMask":
			step.Access.AccessMask = core1_0.AccessFlags(r.Int())
		case "stageMask":
			step.Access.StageMask = core1_0.PipelineStageFlags(r.Int())
		case "layout":
			step.Access.Layout = core1_0.ImageLayout(r.Int())
		case "queueFamily":
			step.Access.QueueFamily = r.Int()
		default:
			_ = r.SkipValue()
		}
	}

	return step
}

func (s *script) validate() error {
	names := make(map[string]bool)
	for _, buffer := range s.Buffers {
		if buffer.Name == "" || names[buffer.Name] {
			return errors.Newf("buffer name %q is empty or declared twice", buffer.Name)
		}
		names[buffer.Name] = true
	}

	for _, image := range s.Images {
		if image.Name == "" || names[image.Name] {
			return errors.Newf("image name %q is empty or declared twice", image.Name)
		}
		names[image.Name] = true
	}

	for i, step := range s.Steps {
		if (step.Buffer == "") == (step.Image == "") {
			return errors.Newf("step %d must name exactly one buffer or image", i)
		}

		switch step.Op {
		case opAccess, opState, opDiscard:
		case opAcquire, opRelease:
			if step.Image != "" {
				return errors.Newf("step %d: %s applies only to buffers", i, step.Op)
			}
		default:
			return errors.Newf("step %d has unknown op %q", i, step.Op)
		}
	}

	return nil
}
