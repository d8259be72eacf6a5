/*
signtrack classifies road signs seen by an object detector across a video
stream.  Per frame detections are noisy, so each physical sign is followed by
a tracker that collects one vote per processed frame and commits to the
majority label once enough votes have been seen, or immediately when the
speed sign classifier is very confident.

The root package holds the types shared by every stage of the pipeline.  The
stages themselves live in the subpackages:

	scheduler  decides which frames from a camera or video file get processed
	pipeline   runs detection, class filtering, sub classification and voting
	tracker    associates detections to trackers and reaches consensus
	model      gocv DNN adapters for the detector and speed classifier
	render     dashboard and frame annotation
	stream     HTTP MJPEG and websocket outputs

See cmd/signtrack for the command line program wiring it all together.
*/
package signtrack
