package config

import (
	"github.com/go-viper/mapstructure/v2"

	"go.viam.com/freeman/video"
)

// AttributeMap is a free-form JSON object converted to a typed struct on demand.
type AttributeMap map[string]interface{}

// TransformAttributeMapToStruct decodes attributes into to, matching keys against json tags.
// Keys without a matching field are an error.
func TransformAttributeMapToStruct(to interface{}, attributes AttributeMap) (interface{}, error) {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      to,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return nil, err
	}
	return to, nil
}

// VideoAttrs converts the video block into ffmpeg arguments.
func (c *Config) VideoAttrs() (*video.FFmpegAttrs, error) {
	var attrs video.FFmpegAttrs
	if len(c.Video) == 0 {
		return &attrs, nil
	}
	if _, err := TransformAttributeMapToStruct(&attrs, c.Video); err != nil {
		return nil, err
	}
	return &attrs, nil
}
