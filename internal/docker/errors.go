package docker

import "errors"

var (
	ErrDocker     = errors.New("docker engine error")
	ErrImageBuild = errors.New("image build failed")
	ErrContainer  = errors.New("container error")
)
