package sfmproject

import (
	"context"
	"fmt"
	"os"

	"go.viam.com/rdk/cli"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/utils"
	"go.viam.com/utils/rpc"

	"github.com/erh/sfmproject/projection"
)

// Connect reaches the machine hosting a picker. With a host the viam cli
// token is used, without one the machine and api key come from the environment.
func Connect(ctx context.Context, host string, logger logging.Logger) (robot.Robot, error) {
	if host != "" {
		return ConnectToHostFromCLIToken(ctx, host, logger)
	}
	return ConnectToMachineFromEnv(ctx, logger)
}

// ConnectToMachineFromEnv reads the machine address and api key the way a module
// process sees them.
func ConnectToMachineFromEnv(ctx context.Context, logger logging.Logger) (robot.Robot, error) {
	params := []string{}
	for _, pp := range []string{utils.MachineFQDNEnvVar, utils.APIKeyIDEnvVar, utils.APIKeyEnvVar} {
		x := os.Getenv(pp)
		if x == "" {
			return nil, fmt.Errorf("no host given and no environment variable for %s", pp)
		}
		params = append(params, x)
	}
	logger.Debugf("connecting to %s from the environment", params[0])
	return ConnectToMachine(ctx, logger, params[0], params[1], params[2])
}

func ConnectToMachine(ctx context.Context, logger logging.Logger, host, apiKeyID, apiKey string) (robot.Robot, error) {
	if apiKeyID == "" || apiKey == "" {
		return nil, fmt.Errorf("need an api key to reach %s", host)
	}
	return client.New(
		ctx,
		host,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			apiKeyID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: apiKey,
			},
		)),
	)
}

// ConnectToHostFromCLIToken logs in with the viam cli token, see "viam login".
func ConnectToHostFromCLIToken(ctx context.Context, host string, logger logging.Logger) (robot.Robot, error) {
	if host == "" {
		return nil, fmt.Errorf("need to specify host")
	}

	c, err := cli.ConfigFromCache(nil)
	if err != nil {
		return nil, err
	}

	dopts, err := c.DialOptions()
	if err != nil {
		return nil, err
	}

	return client.New(ctx, host, logger, client.WithDialOptions(dopts...))
}

// Doer is the part of a resource remote calls need.
type Doer interface {
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// PickerFromMachine finds a pixel picker service on a connected machine.
func PickerFromMachine(machine robot.Robot, name string) (Doer, error) {
	r, err := machine.ResourceByName(generic.Named(name))
	if err != nil {
		return nil, fmt.Errorf("cannot find picker %s: %w", name, err)
	}
	return r, nil
}

// ProjectCommand is the DoCommand request for one click.
func ProjectCommand(image string, u, v float64) map[string]interface{} {
	return map[string]interface{}{
		"project": true,
		"image":   image,
		"x":       u,
		"y":       v,
	}
}

// RemoteProject asks a picker to project a click. A miss is (nil, nil).
func RemoteProject(ctx context.Context, picker Doer, image string, u, v float64) (*projection.ProjectionResult, error) {
	resp, err := picker.DoCommand(ctx, ProjectCommand(image, u, v))
	if err != nil {
		return nil, err
	}
	return DecodeProjection(resp)
}
