package main

// ServiceDefineFlags Flag structs to decouple cobra from logic for testing.
type ServiceDefineFlags struct {
	Path         string
	Name         string
	Dir          string
	RunOnStartup bool
}

type ServiceLaunchFlags struct {
	Name   string
	Dir    string
	Output string
}

type ServiceStopFlags struct {
	Name string
	Dir  string
}

type ServiceSignalFlags struct {
	Name   string
	Dir    string
	Signal string
}

type ServicePIDFlags struct {
	Name string
	Dir  string
}

type ServiceListFlags struct {
	Dir string
}

type ServiceRemoveFlags struct {
	Name string
	Dir  string
	Stop bool
}

type ServiceDiscoverFlags struct {
	Dir string
}

// TemplateCreateFlags holds flags for the template command.
type TemplateCreateFlags struct {
	Type   string
	Name   string
	Output string
	Force  bool
}
