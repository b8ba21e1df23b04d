// Package shader compiles the overlay GLSL program and looks up its uniforms.
package shader

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Vertex attribute locations. They match mesh.Vertex field order.
const (
	AttribPosition = 0
	AttribNormal   = 1
	AttribTexCoord = 2
)

// Texture units used by the model program.
const (
	UnitMain   = 0
	UnitToon   = 1
	UnitSphere = 2
)

const modelVertex = `
#version 410 core

layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;

uniform mat4 uViewProjection;
uniform mat4 uView;

out vec3 vNormal;
out vec2 vTexCoord;
out vec2 vSphereCoord;

void main() {
	gl_Position = uViewProjection * vec4(aPosition, 1.0);
	vNormal = aNormal;
	vTexCoord = aTexCoord;
	vec3 viewNormal = normalize(mat3(uView) * aNormal);
	vSphereCoord = viewNormal.xy * 0.5 + 0.5;
}
`

const modelFragment = `
#version 410 core

in vec3 vNormal;
in vec2 vTexCoord;
in vec2 vSphereCoord;

uniform vec4 uDiffuse;
uniform vec3 uAmbient;
uniform vec3 uLightDir;

uniform sampler2D uMainTex;
uniform sampler2D uToonTex;
uniform sampler2D uSphereTex;
uniform bool uUseMain;
uniform bool uUseToon;
uniform int uSphereMode; // 0 none, 1 multiply, 2 add, 3 sub-texture

out vec4 FragColor;

void main() {
	vec4 color = vec4(clamp(uAmbient + uDiffuse.rgb, 0.0, 1.0), uDiffuse.a);
	if (uUseMain) {
		color *= texture(uMainTex, vTexCoord);
	}
	if (uSphereMode == 1) {
		color.rgb *= texture(uSphereTex, vSphereCoord).rgb;
	} else if (uSphereMode == 2) {
		color.rgb += texture(uSphereTex, vSphereCoord).rgb;
	} else if (uSphereMode == 3) {
		color.rgb *= texture(uSphereTex, vTexCoord).rgb;
	}
	if (uUseToon) {
		float ln = dot(normalize(vNormal), -uLightDir);
		color.rgb *= texture(uToonTex, vec2(0.0, 0.5 - ln * 0.5)).rgb;
	}
	if (color.a <= 0.0) {
		discard;
	}
	FragColor = color;
}
`

// Model is the linked model program with its uniform locations.
type Model struct {
	ID uint32

	ViewProjection int32
	View           int32
	Diffuse        int32
	Ambient        int32
	LightDir       int32
	UseMain        int32
	UseToon        int32
	SphereMode     int32
}

// NewModel compiles and links the model program.
func NewModel() (*Model, error) {
	id, err := CompileProgram(modelVertex, modelFragment)
	if err != nil {
		return nil, err
	}
	p := &Model{
		ID:             id,
		ViewProjection: GetUniform(id, "uViewProjection"),
		View:           GetUniform(id, "uView"),
		Diffuse:        GetUniform(id, "uDiffuse"),
		Ambient:        GetUniform(id, "uAmbient"),
		LightDir:       GetUniform(id, "uLightDir"),
		UseMain:        GetUniform(id, "uUseMain"),
		UseToon:        GetUniform(id, "uUseToon"),
		SphereMode:     GetUniform(id, "uSphereMode"),
	}

	gl.UseProgram(id)
	gl.Uniform1i(GetUniform(id, "uMainTex"), UnitMain)
	gl.Uniform1i(GetUniform(id, "uToonTex"), UnitToon)
	gl.Uniform1i(GetUniform(id, "uSphereTex"), UnitSphere)
	gl.UseProgram(0)
	return p, nil
}

// Delete frees the program.
func (p *Model) Delete() {
	if p.ID != 0 {
		gl.DeleteProgram(p.ID)
		p.ID = 0
	}
}

// CompileProgram compiles vertex and fragment shaders and links them into a program.
func CompileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertShader)

	fragShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertShader)
	gl.AttachShader(program, fragShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		msg := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &msg[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", gl.GoStr(&msg[0]))
	}

	return program, nil
}

func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		msg := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &msg[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, gl.GoStr(&msg[0]))
	}

	return shader, nil
}

// GetUniform returns the uniform location for name, or -1 when the uniform
// is inactive.
func GetUniform(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}
