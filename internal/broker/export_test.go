package broker

var RenderTaskOptions = renderTaskOptions
